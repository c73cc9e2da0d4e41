package giveaway

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one kind, so callers
// can branch on the kind with errors.Is.
var (
	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("giveaway: invalid input")

	// ErrConflict indicates the operation collides with already-committed state.
	ErrConflict = errors.New("giveaway: conflict")

	// ErrUnauthorized indicates the caller lacks the required role.
	ErrUnauthorized = errors.New("giveaway: unauthorized")

	// ErrInvalidState indicates the action is not permitted in the current status.
	ErrInvalidState = errors.New("giveaway: invalid state")

	// ErrTransferFailed indicates the token ledger rejected a transfer.
	ErrTransferFailed = errors.New("giveaway: token transfer failed")
)

var (
	// ErrInvalidSlug indicates the slug is empty, too long, or contains
	// characters outside [A-Za-z0-9_-].
	ErrInvalidSlug = fmt.Errorf("%w: invalid slug", ErrInvalidInput)

	// ErrInvalidAmount indicates a zero share amount or recipient count.
	ErrInvalidAmount = fmt.Errorf("%w: share amount and recipient count must be positive", ErrInvalidInput)

	// ErrAmountOverflow indicates the pool size does not fit in 64 bits.
	ErrAmountOverflow = fmt.Errorf("%w: amount overflow", ErrInvalidInput)

	// ErrInvalidStatus indicates a status value that cannot be set directly.
	ErrInvalidStatus = fmt.Errorf("%w: invalid status", ErrInvalidInput)

	// ErrInvalidIdentity indicates an empty identity token.
	ErrInvalidIdentity = fmt.Errorf("%w: empty identity token", ErrInvalidInput)

	// ErrInvalidAddress indicates a required address is the zero address.
	ErrInvalidAddress = fmt.Errorf("%w: zero address", ErrInvalidInput)

	// ErrNilToken indicates no token ledger was supplied.
	ErrNilToken = fmt.Errorf("%w: token is required", ErrInvalidInput)

	// ErrAlreadyClaimed indicates the caller already claimed a share.
	ErrAlreadyClaimed = fmt.Errorf("%w: tokens already claimed", ErrConflict)

	// ErrIdentityAlreadyUsed indicates the identity token already backed a claim.
	ErrIdentityAlreadyUsed = fmt.Errorf("%w: social already connected", ErrConflict)

	// ErrAlreadyCancelled indicates the giveaway is cancelled and frozen.
	ErrAlreadyCancelled = fmt.Errorf("%w: giveaway already cancelled", ErrConflict)

	// ErrNotOwner indicates the caller is not the giveaway owner.
	ErrNotOwner = fmt.Errorf("%w: only the owner can perform this action", ErrUnauthorized)

	// ErrUserNotAuthenticated indicates the caller is not on the allow-list.
	ErrUserNotAuthenticated = fmt.Errorf("%w: user not authenticated", ErrUnauthorized)

	// ErrGiveawayNotOpen indicates claims are attempted outside Active.
	ErrGiveawayNotOpen = fmt.Errorf("%w: giveaway not open", ErrInvalidState)

	// ErrGiveawayClosed indicates cancellation of a Closed giveaway.
	ErrGiveawayClosed = fmt.Errorf("%w: giveaway closed", ErrInvalidState)

	// ErrPoolExhausted indicates every share has already been claimed.
	ErrPoolExhausted = fmt.Errorf("%w: all shares claimed", ErrInvalidState)

	// ErrConservationViolated indicates the escrow balance disagrees with the
	// claim accounting.
	ErrConservationViolated = fmt.Errorf("%w: escrow balance does not match accounting", ErrInvalidState)
)
