// Package ledger defines the fungible token collaborator used by giveaways
// and provides in-memory and bbolt-backed implementations.
//
// Every Token operation is atomic: it is either fully applied or rejected
// with an error and no effect. Receive hooks run after a transfer commits and
// receive the caller's context, which lets a hook call back into the code
// that initiated the transfer.
package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Token is a fungible token ledger.
type Token interface {
	// ID returns the stable identifier used to persist references to the token.
	ID() string

	// BalanceOf returns the balance held by a.
	BalanceOf(ctx context.Context, a Address) (uint64, error)

	// Allowance returns how much spender may move out of owner's balance.
	Allowance(ctx context.Context, owner, spender Address) (uint64, error)

	// Approve sets the allowance of spender over owner's balance.
	Approve(ctx context.Context, owner, spender Address, amount uint64) error

	// Transfer moves amount from one holder to another.
	Transfer(ctx context.Context, from, to Address, amount uint64) error

	// TransferFrom moves amount out of from's balance on behalf of spender,
	// consuming spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to Address, amount uint64) error
}

// ReceiveHook is invoked after tokens arrive at a watched address. It runs
// inside the transfer's call chain: ctx may carry held call locks, so a hook
// must use it only synchronously and must not retain it.
type ReceiveHook func(ctx context.Context, from, to Address, amount uint64)

// TokenResolver looks up tokens by ID.
type TokenResolver interface {
	Token(id string) (Token, error)
}

// TokenSet is a static TokenResolver.
type TokenSet map[string]Token

// NewTokenSet indexes tokens by their ID.
func NewTokenSet(tokens ...Token) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		set[t.ID()] = t
	}
	return set
}

// Token implements TokenResolver.
func (s TokenSet) Token(id string) (Token, error) {
	t, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, id)
	}
	return t, nil
}

// hookSet holds receive hooks keyed by recipient.
type hookSet struct {
	mu    sync.RWMutex
	hooks map[Address][]ReceiveHook
}

func (h *hookSet) add(addr Address, hook ReceiveHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hooks == nil {
		h.hooks = make(map[Address][]ReceiveHook)
	}
	h.hooks[addr] = append(h.hooks[addr], hook)
}

// fire must be called without holding the ledger lock.
func (h *hookSet) fire(ctx context.Context, from, to Address, amount uint64) {
	h.mu.RLock()
	hooks := append([]ReceiveHook(nil), h.hooks[to]...)
	h.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, from, to, amount)
	}
}

// checkTransfer validates the endpoints of a transfer.
func checkTransfer(from, to Address) error {
	if from.IsZero() {
		return fmt.Errorf("%w: sender", ErrZeroAddress)
	}
	if to.IsZero() {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	return nil
}

// credit adds amount to balance, rejecting overflow.
func credit(balance, amount uint64) (uint64, error) {
	sum := balance + amount
	if sum < balance {
		return 0, ErrBalanceOverflow
	}
	return sum, nil
}
