package giveaway

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/bitfsorg/libgiveaway-go/ledger"
)

// Snapshot captures the full state of the giveaway. Sets are sorted so equal
// states produce equal records.
func (g *Giveaway) Snapshot() Record {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec := Record{
		Address:      g.addr,
		Owner:        g.owner,
		TokenID:      g.token.ID(),
		Index:        g.index,
		Status:       g.status,
		ClaimedCount: g.claimedCount,
		Params: Params{
			ShareAmount:    g.share,
			RecipientCount: g.count,
			Slug:           g.slug,
			Description:    g.description,
			SocialLinks:    g.socialLinks,
			Banner:         g.banner,
			ColorTheme:     g.colorTheme,
		},
		Authenticated:  sortedAddresses(g.authenticated),
		Claimed:        sortedAddresses(g.claimed),
		UsedIdentities: make([]Fingerprint, 0, len(g.usedIdentity)),
	}
	for fp := range g.usedIdentity {
		rec.UsedIdentities = append(rec.UsedIdentities, fp)
	}
	slices.SortFunc(rec.UsedIdentities, func(a, b Fingerprint) int { return bytes.Compare(a[:], b[:]) })
	return rec
}

// Restore rebuilds a giveaway from a record. token must carry rec.TokenID.
func Restore(rec Record, token ledger.Token, opts ...Option) (*Giveaway, error) {
	if token == nil {
		return nil, ErrNilToken
	}
	if token.ID() != rec.TokenID {
		return nil, fmt.Errorf("%w: record token %q, got %q", ErrInvalidInput, rec.TokenID, token.ID())
	}
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(rec.Status))
	}
	if rec.ClaimedCount > rec.Params.RecipientCount ||
		uint64(len(rec.Claimed)) != rec.ClaimedCount ||
		uint64(len(rec.UsedIdentities)) != rec.ClaimedCount {
		return nil, fmt.Errorf("%w: %s claim accounting is inconsistent", ErrInvalidInput, rec.Params.Slug)
	}

	g, err := Deploy(Deployment{
		Address: rec.Address,
		Owner:   rec.Owner,
		Token:   token,
		Index:   rec.Index,
		Params:  rec.Params,
	}, opts...)
	if err != nil {
		return nil, err
	}
	g.status = rec.Status
	g.claimedCount = rec.ClaimedCount
	for _, a := range rec.Authenticated {
		g.authenticated[a] = true
	}
	for _, a := range rec.Claimed {
		g.claimed[a] = true
	}
	for _, fp := range rec.UsedIdentities {
		g.usedIdentity[fp] = true
	}
	return g, nil
}

func sortedAddresses(set map[ledger.Address]bool) []ledger.Address {
	out := make([]ledger.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b ledger.Address) int { return bytes.Compare(a[:], b[:]) })
	return out
}
