package giveaway

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// SetStatus moves the giveaway among Draft, Active and Closed. Any order is
// accepted. Cancelled is reachable only through CancelGiveaway.
func (g *Giveaway) SetStatus(ctx context.Context, caller ledger.Address, s Status) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	if caller != g.owner {
		return ErrNotOwner
	}

	g.mu.Lock()
	if g.status == Cancelled {
		g.mu.Unlock()
		return ErrAlreadyCancelled
	}
	if !s.settable() {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
	prev := g.status
	g.status = s
	g.mu.Unlock()

	g.log.Debug("status changed", logger.Stringer("from", prev), logger.Stringer("to", s))
	g.emit(ctx, events.KindStatusChanged, caller, func(e *events.Event) {
		e.Value = s.String()
	})
	return nil
}

// SetBanner overwrites the banner URL. The value is not validated.
func (g *Giveaway) SetBanner(ctx context.Context, caller ledger.Address, banner string) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	if caller != g.owner {
		return ErrNotOwner
	}

	g.mu.Lock()
	g.banner = banner
	g.mu.Unlock()

	g.emit(ctx, events.KindBannerChanged, caller, func(e *events.Event) {
		e.Value = banner
	})
	return nil
}

// SetAuthenticated adds user to, or removes user from, the allow-list. It
// remains available after cancellation.
func (g *Giveaway) SetAuthenticated(ctx context.Context, caller, user ledger.Address, value bool) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	if caller != g.owner {
		return ErrNotOwner
	}
	if user.IsZero() {
		return ErrInvalidAddress
	}

	g.mu.Lock()
	g.setAuthLocked(user, value)
	g.mu.Unlock()

	g.emitAuthenticated(ctx, caller, user, value)
	return nil
}

// SetAuthenticatedBatch authenticates every user in users. The batch is
// validated as a whole before anything is applied.
func (g *Giveaway) SetAuthenticatedBatch(ctx context.Context, caller ledger.Address, users []ledger.Address) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	if caller != g.owner {
		return ErrNotOwner
	}
	for i, u := range users {
		if u.IsZero() {
			return fmt.Errorf("%w: batch entry %d", ErrInvalidAddress, i)
		}
	}

	g.mu.Lock()
	for _, u := range users {
		g.setAuthLocked(u, true)
	}
	g.mu.Unlock()

	for _, u := range users {
		g.emitAuthenticated(ctx, caller, u, true)
	}
	g.log.Debug("batch authenticated", logger.Int("users", len(users)))
	return nil
}

func (g *Giveaway) setAuthLocked(user ledger.Address, value bool) {
	if value {
		g.authenticated[user] = true
	} else {
		delete(g.authenticated, user)
	}
}

func (g *Giveaway) emitAuthenticated(ctx context.Context, caller, user ledger.Address, value bool) {
	g.emit(ctx, events.KindAuthenticated, caller, func(e *events.Event) {
		e.Subject = user
		e.Flag = value
	})
}
