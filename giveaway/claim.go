package giveaway

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// ClaimableTokens returns the share user could claim given authentication
// and prior claims, or 0. Status is not considered.
func (g *Giveaway) ClaimableTokens(user ledger.Address) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.authenticated[user] && !g.claimed[user] {
		return g.share
	}
	return 0
}

// ClaimTokens transfers one share from the escrow to caller.
//
// Preconditions are checked in this order: the giveaway is Active, caller is
// authenticated, caller has not claimed, identity is non-empty and unused,
// and a share remains. The claim is recorded before the transfer, so a
// reentrant claim made from the recipient's receive hook sees it and fails
// with ErrAlreadyClaimed.
func (g *Giveaway) ClaimTokens(ctx context.Context, caller ledger.Address, identity string) error {
	ctx, release := g.call.Enter(ctx)
	defer release()

	fp := IdentityFingerprint(g.slug, identity)

	g.mu.Lock()
	if err := g.checkClaimLocked(caller, identity, fp); err != nil {
		g.mu.Unlock()
		return err
	}
	g.claimed[caller] = true
	g.usedIdentity[fp] = true
	g.claimedCount++
	g.mu.Unlock()

	if err := g.token.Transfer(ctx, g.addr, caller, g.share); err != nil {
		g.mu.Lock()
		delete(g.claimed, caller)
		delete(g.usedIdentity, fp)
		g.claimedCount--
		g.mu.Unlock()
		g.log.Warn("claim transfer rejected", logger.Stringer("recipient", caller), logger.Error(err))
		return fmt.Errorf("%w: claim by %s: %w", ErrTransferFailed, caller, err)
	}

	g.log.Debug("tokens claimed", logger.Stringer("recipient", caller), logger.Uint64("amount", g.share))
	g.emit(ctx, events.KindTokensClaimed, caller, func(e *events.Event) {
		e.Subject = caller
		e.Amount = g.share
	})
	return nil
}

func (g *Giveaway) checkClaimLocked(caller ledger.Address, identity string, fp Fingerprint) error {
	switch {
	case g.status != Active:
		return fmt.Errorf("%w: status is %s", ErrGiveawayNotOpen, g.status)
	case !g.authenticated[caller]:
		return ErrUserNotAuthenticated
	case g.claimed[caller]:
		return ErrAlreadyClaimed
	case identity == "":
		return ErrInvalidIdentity
	case g.usedIdentity[fp]:
		return ErrIdentityAlreadyUsed
	case g.claimedCount >= g.count:
		return ErrPoolExhausted
	}
	return nil
}
