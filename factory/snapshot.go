package factory

import (
	"fmt"

	"github.com/bitfsorg/libgiveaway-go/giveaway"
	"github.com/bitfsorg/libgiveaway-go/ledger"
)

// Snapshot is the persisted state of a registry. Giveaways are in index order.
type Snapshot struct {
	Address    ledger.Address
	Admin      ledger.Address
	FeeAddress ledger.Address
	FeeRateBps uint64
	Nonce      uint64
	Giveaways  []giveaway.Record
}

// Meta returns the snapshot without its giveaway records.
func (s Snapshot) Meta() Snapshot {
	s.Giveaways = nil
	return s
}

// SnapshotMeta captures the registry without its giveaways.
func (r *Registry) SnapshotMeta() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaLocked()
}

func (r *Registry) metaLocked() Snapshot {
	return Snapshot{
		Address:    r.self,
		Admin:      r.admin,
		FeeAddress: r.feeAddress,
		FeeRateBps: r.feeRateBps,
		Nonce:      r.nonce,
	}
}

// Snapshot captures the registry and every giveaway it holds.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	snap := r.metaLocked()
	instances := append([]*giveaway.Giveaway(nil), r.instances...)
	r.mu.RUnlock()

	snap.Giveaways = make([]giveaway.Record, len(instances))
	for i, g := range instances {
		snap.Giveaways[i] = g.Snapshot()
	}
	return snap
}

// Restore rebuilds a registry from a snapshot, resolving each giveaway's
// token through tokens. Fee rate and fee address come from the snapshot and
// override the matching options.
func Restore(snap Snapshot, tokens ledger.TokenResolver, opts ...Option) (*Registry, error) {
	opts = append(opts, WithFeeRateBps(snap.FeeRateBps), WithFeeAddress(snap.FeeAddress))
	r, err := New(snap.Address, snap.Admin, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if snap.Nonce < uint64(len(snap.Giveaways)) {
		return nil, fmt.Errorf("%w: nonce %d below %d giveaways", ErrInvalidSnapshot, snap.Nonce, len(snap.Giveaways))
	}
	r.nonce = snap.Nonce

	for i, rec := range snap.Giveaways {
		if rec.Index != uint64(i) {
			return nil, fmt.Errorf("%w: record %d carries index %d", ErrInvalidSnapshot, i, rec.Index)
		}
		if _, dup := r.slugs[rec.Params.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidSnapshot, rec.Params.Slug)
		}
		token, err := tokens.Token(rec.TokenID)
		if err != nil {
			return nil, fmt.Errorf("%w: giveaway %d: %w", ErrInvalidSnapshot, i, err)
		}
		g, err := giveaway.Restore(rec, token, r.giveawayOptions()...)
		if err != nil {
			return nil, fmt.Errorf("%w: giveaway %d: %w", ErrInvalidSnapshot, i, err)
		}
		r.instances = append(r.instances, g)
		r.slugs[rec.Params.Slug] = rec.Index
		r.owners[rec.Owner] = append(r.owners[rec.Owner], rec.Index)
	}
	return r, nil
}
