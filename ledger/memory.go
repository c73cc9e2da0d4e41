package ledger

import (
	"context"
	"fmt"
	"sync"
)

type allowanceKey struct {
	owner   Address
	spender Address
}

// MemToken is an in-memory Token. It is safe for concurrent use.
type MemToken struct {
	id string

	mu         sync.RWMutex
	balances   map[Address]uint64
	allowances map[allowanceKey]uint64
	supply     uint64

	hooks hookSet
}

// Compile-time interface check.
var _ Token = (*MemToken)(nil)

// NewMemToken creates an empty in-memory token.
func NewMemToken(id string) *MemToken {
	return &MemToken{
		id:         id,
		balances:   make(map[Address]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// ID returns the token identifier.
func (t *MemToken) ID() string { return t.id }

// OnReceive registers a hook fired whenever addr receives tokens.
func (t *MemToken) OnReceive(addr Address, hook ReceiveHook) { t.hooks.add(addr, hook) }

// TotalSupply returns the amount minted so far.
func (t *MemToken) TotalSupply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// Mint creates amount new tokens owned by to.
func (t *MemToken) Mint(ctx context.Context, to Address, amount uint64) error {
	if to.IsZero() {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if amount == 0 {
		return ErrZeroAmount
	}

	t.mu.Lock()
	supply, err := credit(t.supply, amount)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	bal, err := credit(t.balances[to], amount)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.supply = supply
	t.balances[to] = bal
	t.mu.Unlock()

	t.hooks.fire(ctx, ZeroAddress, to, amount)
	return nil
}

// BalanceOf returns the balance held by a.
func (t *MemToken) BalanceOf(_ context.Context, a Address) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[a], nil
}

// Allowance returns the approved amount for spender over owner's balance.
func (t *MemToken) Allowance(_ context.Context, owner, spender Address) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[allowanceKey{owner, spender}], nil
}

// Approve overwrites the allowance of spender over owner's balance.
func (t *MemToken) Approve(_ context.Context, owner, spender Address, amount uint64) error {
	if err := checkTransfer(owner, spender); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{owner, spender}] = amount
	return nil
}

// Transfer moves amount from one holder to another.
func (t *MemToken) Transfer(ctx context.Context, from, to Address, amount uint64) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.hooks.fire(ctx, from, to, amount)
	return nil
}

// TransferFrom moves amount out of from's balance, consuming spender's allowance.
func (t *MemToken) TransferFrom(ctx context.Context, spender, from, to Address, amount uint64) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}

	t.mu.Lock()
	key := allowanceKey{from, spender}
	allowed := t.allowances[key]
	if allowed < amount {
		t.mu.Unlock()
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientAllowance, allowed, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	t.allowances[key] = allowed - amount
	t.mu.Unlock()

	t.hooks.fire(ctx, from, to, amount)
	return nil
}

// move must be called with t.mu held. It leaves balances untouched on error.
func (t *MemToken) move(from, to Address, amount uint64) error {
	fromBal := t.balances[from]
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := credit(t.balances[to], amount)
	if err != nil {
		return err
	}
	t.balances[from] = fromBal - amount
	t.balances[to] = toBal
	return nil
}
