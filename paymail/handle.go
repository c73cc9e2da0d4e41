package paymail

import (
	"fmt"
	"strings"
)

// Handle is a paymail address, alias@domain.
type Handle struct {
	Alias  string
	Domain string
}

// String returns alias@domain.
func (h Handle) String() string { return h.Alias + "@" + h.Domain }

// IsHandle reports whether s looks like a paymail handle rather than a
// ledger address.
func IsHandle(s string) bool { return strings.Contains(s, "@") }

// ParseHandle parses alias@domain. The domain is lowercased; the alias keeps
// its case.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	alias, domain, ok := strings.Cut(s, "@")
	if !ok || alias == "" || domain == "" {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	if strings.ContainsAny(alias, "/?#@ ") {
		return Handle{}, fmt.Errorf("%w: alias %q", ErrInvalidHandle, alias)
	}
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if !strings.Contains(domain, ".") && domain != "localhost" {
		return Handle{}, fmt.Errorf("%w: domain %q", ErrInvalidHandle, domain)
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || !validLabel(label) {
			return Handle{}, fmt.Errorf("%w: domain %q", ErrInvalidHandle, domain)
		}
	}
	return Handle{Alias: alias, Domain: domain}, nil
}

func validLabel(label string) bool {
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}
