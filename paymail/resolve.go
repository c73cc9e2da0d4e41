// Package paymail resolves paymail handles (alias@domain) to ledger
// addresses so fee and admin destinations can be configured by handle.
//
// Resolution follows the bsvalias flow: an SRV lookup of
// _bsvalias._tcp.{domain} selects the host (falling back to {domain}:443),
// GET https://{host}/.well-known/bsvalias discovers the PKI capability, and
// the PKI endpoint returns the compressed public key whose hash160 is the
// address.
package paymail

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/sync/singleflight"

	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// MaxResponseSize bounds discovery and PKI response bodies.
const MaxResponseSize = 64 << 10

// Capability keys of the bsvalias capabilities document.
const (
	capPKI           = "pki"
	capPublicProfile = "f12f968c92d6"
	capVerifyPubKey  = "a9f510c16bde"
)

// Capabilities are the endpoint templates a paymail host advertises.
type Capabilities struct {
	PKI           string
	PublicProfile string
	VerifyPubKey  string
}

// PKIResponse is the body returned by a PKI endpoint.
type PKIResponse struct {
	BSVAlias string `json:"bsvalias"`
	Handle   string `json:"handle"`
	PubKey   string `json:"pubkey"`
}

type wellKnown struct {
	BSVAlias     string         `json:"bsvalias"`
	Capabilities map[string]any `json:"capabilities"`
}

// HTTPClient sends requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver resolves handles. Concurrent lookups of the same handle share one
// network round trip. It is safe for concurrent use.
type Resolver struct {
	client HTTPClient
	dns    DNSResolver
	log    logger.Logger
	group  singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithDNSResolver sets the SRV resolver, e.g. a DNSSECResolver.
func WithDNSResolver(d DNSResolver) Option {
	return func(r *Resolver) {
		if d != nil {
			r.dns = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a Resolver using the system DNS resolver and an HTTP
// client with a 30s timeout unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client: &http.Client{Timeout: 30 * time.Second},
		dns:    DefaultDNSResolver,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Host returns the host:port serving paymail for domain, falling back to
// domain:443 when no SRV record is published.
func (r *Resolver) Host(ctx context.Context, domain string) string {
	endpoints, err := LookupEndpoints(ctx, domain, r.dns)
	if err != nil {
		r.log.Debug("paymail SRV lookup failed, using domain", logger.String("domain", domain), logger.Error(err))
		return net.JoinHostPort(domain, "443")
	}
	return endpoints[0]
}

// Capabilities fetches the capability document of domain.
func (r *Resolver) Capabilities(ctx context.Context, domain string) (*Capabilities, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDiscovery)
	}
	host := r.Host(ctx, domain)
	u := "https://" + host + "/.well-known/bsvalias"

	var wk wellKnown
	if err := r.getJSON(ctx, u, &wk); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	caps := &Capabilities{}
	for key, val := range wk.Capabilities {
		s, ok := val.(string)
		if !ok {
			continue
		}
		switch key {
		case capPKI:
			caps.PKI = s
		case capPublicProfile:
			caps.PublicProfile = s
		case capVerifyPubKey:
			caps.VerifyPubKey = s
		}
	}
	return caps, nil
}

// PublicKey resolves h to its identity public key.
func (r *Resolver) PublicKey(ctx context.Context, h Handle) (*ec.PublicKey, error) {
	caps, err := r.Capabilities(ctx, h.Domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if caps.PKI == "" {
		return nil, fmt.Errorf("%w: no PKI capability for %s", ErrPKIResolution, h.Domain)
	}

	pkiURL := strings.ReplaceAll(caps.PKI, "{alias}", url.PathEscape(h.Alias))
	pkiURL = strings.ReplaceAll(pkiURL, "{domain.tld}", url.PathEscape(h.Domain))

	var pki PKIResponse
	if err := r.getJSON(ctx, pkiURL, &pki); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if pki.PubKey == "" {
		return nil, fmt.Errorf("%w: empty public key for %s", ErrPKIResolution, h)
	}
	raw, err := hex.DecodeString(pki.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	if err := validateCompressedPubKey(raw); err != nil {
		return nil, err
	}
	pub, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	return pub, nil
}

// Address resolves h to the hash160 address of its public key.
func (r *Resolver) Address(ctx context.Context, h Handle) (ledger.Address, error) {
	v, err, shared := r.group.Do(h.String(), func() (any, error) {
		pub, err := r.PublicKey(ctx, h)
		if err != nil {
			return ledger.ZeroAddress, err
		}
		return ledger.AddressFromPublicKey(pub)
	})
	if err != nil {
		return ledger.ZeroAddress, err
	}
	addr := v.(ledger.Address)
	r.log.Debug("paymail resolved", logger.Stringer("handle", h), logger.Stringer("address", addr), logger.Bool("shared", shared))
	return addr, nil
}

// ResolveAddress accepts either a ledger address (hex or base58) or a
// paymail handle and returns the ledger address.
func (r *Resolver) ResolveAddress(ctx context.Context, s string) (ledger.Address, error) {
	if !IsHandle(s) {
		return ledger.ParseAddress(s)
	}
	h, err := ParseHandle(s)
	if err != nil {
		return ledger.ZeroAddress, err
	}
	return r.Address(ctx, h)
}

func (r *Resolver) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", u, err)
	}
	if len(body) > MaxResponseSize {
		return fmt.Errorf("response from %s exceeds %d bytes", u, MaxResponseSize)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse %s: %w", u, err)
	}
	return nil
}

// validateCompressedPubKey checks for 33 bytes with a 0x02 or 0x03 prefix.
func validateCompressedPubKey(pub []byte) error {
	if len(pub) != 33 {
		return fmt.Errorf("%w: expected 33 bytes, got %d", ErrInvalidPubKey, len(pub))
	}
	if pub[0] != 0x02 && pub[0] != 0x03 {
		return fmt.Errorf("%w: invalid prefix byte 0x%02x", ErrInvalidPubKey, pub[0])
	}
	return nil
}
