// Package giveaway implements the per-giveaway distribution state machine.
//
// A Giveaway holds a fixed pool of tokens in an escrow address. The owner
// authenticates recipients, opens the giveaway, and may cancel it to recover
// every unclaimed share. Each authenticated recipient may claim exactly one
// share while the giveaway is Active, and each external identity token may
// back at most one claim.
//
// Mutating calls are serialized per instance. Within a call all internal
// effects are committed before the token transfer, and rolled back if the
// transfer fails, so a failed call leaves no trace.
package giveaway

import (
	"context"
	"sync"

	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/internal/calllock"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// Giveaway is one distribution instance. It is safe for concurrent use.
type Giveaway struct {
	addr        ledger.Address
	owner       ledger.Address
	token       ledger.Token
	index       uint64
	share       uint64
	count       uint64
	slug        string
	description string
	socialLinks string
	colorTheme  string

	call *calllock.Lock

	mu            sync.RWMutex
	status        Status
	banner        string
	authenticated map[ledger.Address]bool
	claimed       map[ledger.Address]bool
	usedIdentity  map[Fingerprint]bool
	claimedCount  uint64

	emitter events.Emitter
	log     logger.Logger
}

// Option configures a Giveaway.
type Option func(*Giveaway)

// WithEmitter sets the sink for committed events.
func WithEmitter(e events.Emitter) Option {
	return func(g *Giveaway) {
		if e != nil {
			g.emitter = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Giveaway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithCallLock serializes the giveaway's calls on l instead of a lock of its
// own. A registry hands its lock to every giveaway it creates, so hooks that
// move between the registry and its giveaways stay in one call chain.
func WithCallLock(l *calllock.Lock) Option {
	return func(g *Giveaway) {
		if l != nil {
			g.call = l
		}
	}
}

// Deploy creates a giveaway in Draft. The escrow must be funded by the
// caller; Deploy itself moves no tokens.
func Deploy(d Deployment, opts ...Option) (*Giveaway, error) {
	if err := ValidateParams(d.Params); err != nil {
		return nil, err
	}
	if d.Token == nil {
		return nil, ErrNilToken
	}
	if d.Owner.IsZero() || d.Address.IsZero() {
		return nil, ErrInvalidAddress
	}

	g := &Giveaway{
		addr:          d.Address,
		owner:         d.Owner,
		token:         d.Token,
		index:         d.Index,
		share:         d.ShareAmount,
		count:         d.RecipientCount,
		slug:          d.Slug,
		description:   d.Description,
		socialLinks:   d.SocialLinks,
		colorTheme:    d.ColorTheme,
		status:        Draft,
		banner:        d.Banner,
		authenticated: make(map[ledger.Address]bool),
		claimed:       make(map[ledger.Address]bool),
		usedIdentity:  make(map[Fingerprint]bool),
		call:          new(calllock.Lock),
		emitter:       events.Discard,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.String("slug", g.slug), logger.Stringer("giveaway", g.addr))
	return g, nil
}

// Address returns the escrow address holding the pool.
func (g *Giveaway) Address() ledger.Address { return g.addr }

// Owner returns the creator, who is also the authentication admin.
func (g *Giveaway) Owner() ledger.Address { return g.owner }

// Token returns the distributed token.
func (g *Giveaway) Token() ledger.Token { return g.token }

// Index returns the registry index of the giveaway.
func (g *Giveaway) Index() uint64 { return g.index }

// ShareAmount returns the fixed amount each recipient may claim.
func (g *Giveaway) ShareAmount() uint64 { return g.share }

// RecipientCount returns the number of shares in the pool.
func (g *Giveaway) RecipientCount() uint64 { return g.count }

// Pool returns ShareAmount * RecipientCount.
func (g *Giveaway) Pool() uint64 { return g.share * g.count }

// Slug returns the unique identifier of the giveaway.
func (g *Giveaway) Slug() string { return g.slug }

// CustomURL is an alias of Slug.
func (g *Giveaway) CustomURL() string { return g.slug }

// Description returns the giveaway description.
func (g *Giveaway) Description() string { return g.description }

// SocialLinks returns the social links metadata.
func (g *Giveaway) SocialLinks() string { return g.socialLinks }

// ColorTheme returns the color theme metadata.
func (g *Giveaway) ColorTheme() string { return g.colorTheme }

// Banner returns the current banner URL.
func (g *Giveaway) Banner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.banner
}

// Status returns the current status.
func (g *Giveaway) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// IsAuthenticated reports whether user is on the allow-list.
func (g *Giveaway) IsAuthenticated(user ledger.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.authenticated[user]
}

// HasClaimed reports whether user already claimed a share.
func (g *Giveaway) HasClaimed(user ledger.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.claimed[user]
}

// ClaimedCount returns the number of committed claims.
func (g *Giveaway) ClaimedCount() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.claimedCount
}

// Remaining returns the amount the escrow should hold: zero once cancelled,
// otherwise the unclaimed shares.
func (g *Giveaway) Remaining() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remainingLocked()
}

func (g *Giveaway) remainingLocked() uint64 {
	if g.status == Cancelled {
		return 0
	}
	return g.share * (g.count - g.claimedCount)
}

// emit stamps and publishes an event for this giveaway.
func (g *Giveaway) emit(ctx context.Context, kind events.Kind, actor ledger.Address, fill func(*events.Event)) {
	e := events.New(kind)
	e.Giveaway = g.addr
	e.Slug = g.slug
	e.Index = g.index
	e.Actor = actor
	if fill != nil {
		fill(&e)
	}
	g.emitter.Emit(ctx, e)
}
