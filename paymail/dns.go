package paymail

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNSResolver looks up SRV records. Tests substitute a fake.
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// netResolver wraps net.DefaultResolver.
type netResolver struct{}

func (netResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	return net.DefaultResolver.LookupSRV(ctx, service, proto, name)
}

// DefaultDNSResolver uses the system resolver.
var DefaultDNSResolver DNSResolver = netResolver{}

// SRVService is the paymail SRV service name: _bsvalias._tcp.{domain}.
const SRVService = "bsvalias"

// LookupEndpoints resolves the paymail SRV records of domain to host:port
// strings, ordered by priority (ascending) then weight (descending).
func LookupEndpoints(ctx context.Context, domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	_, addrs, err := resolver.LookupSRV(ctx, SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, SRVService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, SRVService, domain)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, len(addrs))
	for i, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints[i] = net.JoinHostPort(host, fmt.Sprint(srv.Port))
	}
	return endpoints, nil
}
