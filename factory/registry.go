// Package factory implements the giveaway registry: it validates and funds
// new giveaways, skims the creation fee, and indexes every instance by
// position, slug and owner.
package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitfsorg/libgiveaway-go/custody"
	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/giveaway"
	"github.com/bitfsorg/libgiveaway-go/internal/calllock"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// Registry creates and indexes giveaways. It is safe for concurrent use.
type Registry struct {
	self       ledger.Address
	admin      ledger.Address
	feeRateBps uint64
	custody    custody.Deriver
	emitter    events.Emitter
	log        logger.Logger

	call *calllock.Lock // shared with every giveaway

	mu         sync.RWMutex
	feeAddress ledger.Address
	nonce      uint64 // next custody derivation index, never reused
	instances  []*giveaway.Giveaway
	slugs      map[string]uint64
	pending    map[string]bool
	owners     map[ledger.Address][]uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFeeRateBps sets the creation fee in basis points of the pool.
func WithFeeRateBps(bps uint64) Option {
	return func(r *Registry) { r.feeRateBps = bps }
}

// WithFeeAddress sets the initial fee destination. Defaults to the admin.
func WithFeeAddress(a ledger.Address) Option {
	return func(r *Registry) { r.feeAddress = a }
}

// WithCustody sets the escrow deriver. Defaults to HashCustody over the
// registry address.
func WithCustody(d custody.Deriver) Option {
	return func(r *Registry) {
		if d != nil {
			r.custody = d
		}
	}
}

// WithEmitter sets the event sink shared by the registry and its giveaways.
func WithEmitter(e events.Emitter) Option {
	return func(r *Registry) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithLogger sets the logger shared by the registry and its giveaways.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates an empty registry. self is the account the registry uses to
// pull deposits; admin may change the fee address.
func New(self, admin ledger.Address, opts ...Option) (*Registry, error) {
	if self.IsZero() || admin.IsZero() {
		return nil, giveaway.ErrInvalidAddress
	}
	r := &Registry{
		self:       self,
		admin:      admin,
		feeRateBps: DefaultFeeRateBps,
		feeAddress: admin,
		custody:    custody.NewHashCustody(self),
		emitter:    events.Discard,
		log:        logger.Nop(),
		call:       new(calllock.Lock),
		slugs:      make(map[string]uint64),
		pending:    make(map[string]bool),
		owners:     make(map[ledger.Address][]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.feeRateBps > MaxFeeRateBps {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFeeRate, r.feeRateBps)
	}
	if r.feeAddress.IsZero() {
		return nil, fmt.Errorf("%w: fee address", giveaway.ErrInvalidAddress)
	}
	return r, nil
}

func (r *Registry) giveawayOptions() []giveaway.Option {
	return []giveaway.Option{
		giveaway.WithEmitter(r.emitter),
		giveaway.WithLogger(r.log),
		giveaway.WithCallLock(r.call),
	}
}

// Address returns the registry's own account.
func (r *Registry) Address() ledger.Address { return r.self }

// Admin returns the immutable admin.
func (r *Registry) Admin() ledger.Address { return r.admin }

// FeeRateBps returns the creation fee rate.
func (r *Registry) FeeRateBps() uint64 { return r.feeRateBps }

// FeeAddress returns the current fee destination.
func (r *Registry) FeeAddress() ledger.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeAddress
}

// ChangeFeeAddress replaces the fee destination. Admin only.
func (r *Registry) ChangeFeeAddress(ctx context.Context, caller, addr ledger.Address) error {
	ctx, release := r.call.Enter(ctx)
	defer release()

	if caller != r.admin {
		return ErrNotAdmin
	}
	if addr.IsZero() {
		return fmt.Errorf("%w: fee address", giveaway.ErrInvalidAddress)
	}

	r.mu.Lock()
	r.feeAddress = addr
	r.mu.Unlock()

	r.log.Info("fee address changed", logger.Stringer("fee_address", addr))
	e := events.New(events.KindFeeAddressChanged)
	e.Actor = caller
	e.Subject = addr
	r.emitter.Emit(ctx, e)
	return nil
}

// CreateGiveaway funds and registers a new giveaway owned by creator.
//
// The creator must have approved the registry address for
// pool + fee, where pool = ShareAmount*RecipientCount and
// fee = pool*FeeRateBps/10000. The deposit is pulled into the registry,
// the pool is forwarded to a fresh escrow and the fee to the fee address.
// If any step fails every completed transfer is reversed, the slug is
// released, and nothing is registered.
func (r *Registry) CreateGiveaway(ctx context.Context, creator ledger.Address, token ledger.Token, p giveaway.Params) (*giveaway.Giveaway, error) {
	ctx, release := r.call.Enter(ctx)
	defer release()

	if err := giveaway.ValidateSlug(p.Slug); err != nil {
		return nil, err
	}
	pool, fee, total, err := Charge(p.ShareAmount, p.RecipientCount, r.feeRateBps)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, giveaway.ErrNilToken
	}
	if creator.IsZero() {
		return nil, fmt.Errorf("%w: creator", giveaway.ErrInvalidAddress)
	}

	r.mu.Lock()
	if _, taken := r.slugs[p.Slug]; taken || r.pending[p.Slug] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrSlugTaken, p.Slug)
	}
	r.pending[p.Slug] = true
	nonce := r.nonce
	r.nonce++
	feeAddr := r.feeAddress
	r.mu.Unlock()

	unreserve := func() {
		r.mu.Lock()
		delete(r.pending, p.Slug)
		r.mu.Unlock()
	}

	escrow, err := r.custody.EscrowAddress(nonce)
	if err != nil {
		unreserve()
		return nil, fmt.Errorf("factory: derive escrow %d: %w", nonce, err)
	}

	log := r.log.With(logger.String("slug", p.Slug), logger.Stringer("creator", creator))
	if err := r.fund(ctx, log, token, creator, escrow, feeAddr, pool, fee, total); err != nil {
		unreserve()
		return nil, err
	}

	r.mu.Lock()
	index := uint64(len(r.instances))
	g, err := giveaway.Deploy(giveaway.Deployment{
		Address: escrow,
		Owner:   creator,
		Token:   token,
		Index:   index,
		Params:  p,
	}, r.giveawayOptions()...)
	if err != nil {
		delete(r.pending, p.Slug)
		r.mu.Unlock()
		return nil, errors.Join(err, r.unwind(ctx, log, token, creator, escrow, feeAddr, pool, fee, true, true))
	}
	r.instances = append(r.instances, g)
	r.slugs[p.Slug] = index
	r.owners[creator] = append(r.owners[creator], index)
	delete(r.pending, p.Slug)
	r.mu.Unlock()

	log.Info("giveaway created",
		logger.Uint64("index", index),
		logger.Stringer("escrow", escrow),
		logger.Uint64("pool", pool),
		logger.Uint64("fee", fee))

	e := events.New(events.KindGiveawayCreated)
	e.Giveaway = escrow
	e.Slug = p.Slug
	e.Actor = creator
	e.Subject = creator
	e.Amount = pool
	e.Fee = fee
	e.Index = index
	r.emitter.Emit(ctx, e)
	return g, nil
}

// fund pulls the deposit and distributes it. On failure it reverses the
// completed steps before returning.
func (r *Registry) fund(ctx context.Context, log logger.Logger, token ledger.Token,
	creator, escrow, feeAddr ledger.Address, pool, fee, total uint64) error {
	if err := token.TransferFrom(ctx, r.self, creator, r.self, total); err != nil {
		log.Warn("deposit rejected", logger.Uint64("amount", total), logger.Error(err))
		return fmt.Errorf("%w: deposit of %d: %w", giveaway.ErrTransferFailed, total, err)
	}
	if err := token.Transfer(ctx, r.self, escrow, pool); err != nil {
		log.Warn("escrow funding rejected", logger.Uint64("amount", pool), logger.Error(err))
		return errors.Join(
			fmt.Errorf("%w: escrow funding of %d: %w", giveaway.ErrTransferFailed, pool, err),
			r.unwind(ctx, log, token, creator, escrow, feeAddr, pool, fee, false, false),
		)
	}
	if fee > 0 {
		if err := token.Transfer(ctx, r.self, feeAddr, fee); err != nil {
			log.Warn("fee transfer rejected", logger.Uint64("amount", fee), logger.Error(err))
			return errors.Join(
				fmt.Errorf("%w: fee of %d: %w", giveaway.ErrTransferFailed, fee, err),
				r.unwind(ctx, log, token, creator, escrow, feeAddr, pool, fee, true, false),
			)
		}
	}
	return nil
}

// unwind returns the deposit to creator. funded and feePaid say which
// forwarding transfers completed.
func (r *Registry) unwind(ctx context.Context, log logger.Logger, token ledger.Token,
	creator, escrow, feeAddr ledger.Address, pool, fee uint64, funded, feePaid bool) error {
	var errs []error
	if feePaid && fee > 0 {
		errs = append(errs, token.Transfer(ctx, feeAddr, r.self, fee))
	}
	if funded {
		errs = append(errs, token.Transfer(ctx, escrow, r.self, pool))
	}
	errs = append(errs, token.Transfer(ctx, r.self, creator, pool+fee))
	if err := errors.Join(errs...); err != nil {
		log.Error("compensation failed", logger.Error(err))
		return fmt.Errorf("factory: compensation failed: %w", err)
	}
	log.Warn("creation compensated", logger.Uint64("refund", pool+fee))
	return nil
}

// NumGiveaways returns the number of registered giveaways.
func (r *Registry) NumGiveaways() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.instances))
}

// Giveaway returns the giveaway at index i.
func (r *Registry) Giveaway(i uint64) (*giveaway.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i >= uint64(len(r.instances)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(r.instances))
	}
	return r.instances[i], nil
}

// Giveaways returns every registered giveaway in creation order.
func (r *Registry) Giveaways() []*giveaway.Giveaway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*giveaway.Giveaway(nil), r.instances...)
}

// GiveawaysByOwner returns the giveaways created by owner, oldest first.
func (r *Registry) GiveawaysByOwner(owner ledger.Address) []*giveaway.Giveaway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.owners[owner]
	out := make([]*giveaway.Giveaway, len(idx))
	for i, n := range idx {
		out[i] = r.instances[n]
	}
	return out
}

// BySlug returns the giveaway registered under slug.
func (r *Registry) BySlug(slug string) (*giveaway.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.slugs[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGiveawayNotFound, slug)
	}
	return r.instances[n], nil
}

// SlugTaken reports whether slug is registered or reserved.
func (r *Registry) SlugTaken(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slugs[slug]
	return ok || r.pending[slug]
}

// Audit runs the conservation check on every giveaway.
func (r *Registry) Audit(ctx context.Context) error {
	var errs []error
	for _, g := range r.Giveaways() {
		errs = append(errs, g.Audit(ctx))
	}
	return errors.Join(errs...)
}
