package giveaway

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// CancelGiveaway freezes the giveaway and refunds every unclaimed share to
// the owner. It is accepted from Draft or Active only; a Closed giveaway
// fails with ErrGiveawayClosed before any transfer.
func (g *Giveaway) CancelGiveaway(ctx context.Context, caller ledger.Address) error {
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
	if g.status == Closed {
		g.mu.Unlock()
		return ErrGiveawayClosed
	}
	refund := g.remainingLocked()
	prev := g.status
	g.status = Cancelled
	g.mu.Unlock()

	if refund > 0 {
		if err := g.token.Transfer(ctx, g.addr, g.owner, refund); err != nil {
			g.mu.Lock()
			g.status = prev
			g.mu.Unlock()
			g.log.Warn("refund transfer rejected", logger.Uint64("amount", refund), logger.Error(err))
			return fmt.Errorf("%w: refund of %d: %w", ErrTransferFailed, refund, err)
		}
	}

	g.log.Debug("giveaway cancelled", logger.Uint64("refund", refund))
	g.emit(ctx, events.KindGiveawayCancelled, caller, func(e *events.Event) {
		e.Subject = g.owner
		e.Amount = refund
	})
	return nil
}

// Audit compares the escrow balance with the claim accounting.
func (g *Giveaway) Audit(ctx context.Context) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	want := g.Remaining()
	have, err := g.token.BalanceOf(ctx, g.addr)
	if err != nil {
		return fmt.Errorf("giveaway: audit %s: %w", g.slug, err)
	}
	if have != want {
		return fmt.Errorf("%w: %s holds %d, expected %d", ErrConservationViolated, g.slug, have, want)
	}
	return nil
}
