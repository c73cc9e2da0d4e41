package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketTokens     = []byte("tokens")
	bucketBalances   = []byte("balances")
	bucketAllowances = []byte("allowances")
	keySupply        = []byte("supply")
)

// BoltLedger wraps a bbolt database holding the balances of one or more tokens.
type BoltLedger struct {
	db *bbolt.DB
}

// OpenBoltLedger opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// Token returns the token with the given ID, creating its buckets on first use.
func (l *BoltLedger) Token(id string) (*BoltToken, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty token id", ErrUnknownToken)
	}
	err := l.db.Update(func(tx *bbolt.Tx) error {
		tb, err := tx.Bucket(bucketTokens).CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return fmt.Errorf("boltstore: create token bucket %q: %w", id, err)
		}
		for _, name := range [][]byte{bucketBalances, bucketAllowances} {
			if _, err := tb.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltToken{db: l.db, id: id}, nil
}

// amountValue encodes an amount as 8 big-endian bytes.
func amountValue(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// readAmount decodes an amount; a missing key reads as zero.
func readAmount(b *bbolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func allowanceDBKey(owner, spender Address) []byte {
	k := make([]byte, 0, 2*AddressSize)
	k = append(k, owner[:]...)
	return append(k, spender[:]...)
}

// BoltToken is a Token persisted in a BoltLedger. Each operation runs in a
// single bbolt write transaction.
type BoltToken struct {
	db    *bbolt.DB
	id    string
	hooks hookSet
}

// Compile-time interface check.
var _ Token = (*BoltToken)(nil)

// ID returns the token identifier.
func (t *BoltToken) ID() string { return t.id }

// OnReceive registers a hook fired whenever addr receives tokens.
func (t *BoltToken) OnReceive(addr Address, hook ReceiveHook) { t.hooks.add(addr, hook) }

func (t *BoltToken) bucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket(bucketTokens).Bucket([]byte(t.id))
}

// Mint creates amount new tokens owned by to.
func (t *BoltToken) Mint(ctx context.Context, to Address, amount uint64) error {
	if to.IsZero() {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	err := t.db.Update(func(tx *bbolt.Tx) error {
		tb := t.bucket(tx)
		supply, err := credit(readAmount(tb, keySupply), amount)
		if err != nil {
			return err
		}
		balances := tb.Bucket(bucketBalances)
		bal, err := credit(readAmount(balances, to[:]), amount)
		if err != nil {
			return err
		}
		if err := tb.Put(keySupply, amountValue(supply)); err != nil {
			return fmt.Errorf("boltstore: put supply: %w", err)
		}
		return balances.Put(to[:], amountValue(bal))
	})
	if err != nil {
		return err
	}
	t.hooks.fire(ctx, ZeroAddress, to, amount)
	return nil
}

// TotalSupply returns the amount minted so far.
func (t *BoltToken) TotalSupply() (uint64, error) {
	var supply uint64
	err := t.db.View(func(tx *bbolt.Tx) error {
		supply = readAmount(t.bucket(tx), keySupply)
		return nil
	})
	return supply, err
}

// BalanceOf returns the balance held by a.
func (t *BoltToken) BalanceOf(_ context.Context, a Address) (uint64, error) {
	var bal uint64
	err := t.db.View(func(tx *bbolt.Tx) error {
		bal = readAmount(t.bucket(tx).Bucket(bucketBalances), a[:])
		return nil
	})
	return bal, err
}

// Allowance returns the approved amount for spender over owner's balance.
func (t *BoltToken) Allowance(_ context.Context, owner, spender Address) (uint64, error) {
	var allowed uint64
	err := t.db.View(func(tx *bbolt.Tx) error {
		allowed = readAmount(t.bucket(tx).Bucket(bucketAllowances), allowanceDBKey(owner, spender))
		return nil
	})
	return allowed, err
}

// Approve overwrites the allowance of spender over owner's balance.
func (t *BoltToken) Approve(_ context.Context, owner, spender Address, amount uint64) error {
	if err := checkTransfer(owner, spender); err != nil {
		return err
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		return t.bucket(tx).Bucket(bucketAllowances).Put(allowanceDBKey(owner, spender), amountValue(amount))
	})
}

// Transfer moves amount from one holder to another.
func (t *BoltToken) Transfer(ctx context.Context, from, to Address, amount uint64) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	err := t.db.Update(func(tx *bbolt.Tx) error {
		return move(t.bucket(tx).Bucket(bucketBalances), from, to, amount)
	})
	if err != nil {
		return err
	}
	t.hooks.fire(ctx, from, to, amount)
	return nil
}

// TransferFrom moves amount out of from's balance, consuming spender's allowance.
func (t *BoltToken) TransferFrom(ctx context.Context, spender, from, to Address, amount uint64) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	err := t.db.Update(func(tx *bbolt.Tx) error {
		tb := t.bucket(tx)
		allowances := tb.Bucket(bucketAllowances)
		key := allowanceDBKey(from, spender)
		allowed := readAmount(allowances, key)
		if allowed < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientAllowance, allowed, amount)
		}
		if err := move(tb.Bucket(bucketBalances), from, to, amount); err != nil {
			return err
		}
		return allowances.Put(key, amountValue(allowed-amount))
	})
	if err != nil {
		return err
	}
	t.hooks.fire(ctx, from, to, amount)
	return nil
}

// move debits from and credits to inside a write transaction. An error
// aborts the transaction, so no partial update is ever committed.
func move(balances *bbolt.Bucket, from, to Address, amount uint64) error {
	fromBal := readAmount(balances, from[:])
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := credit(readAmount(balances, to[:]), amount)
	if err != nil {
		return err
	}
	if err := balances.Put(from[:], amountValue(fromBal-amount)); err != nil {
		return fmt.Errorf("boltstore: put balance: %w", err)
	}
	if err := balances.Put(to[:], amountValue(toBal)); err != nil {
		return fmt.Errorf("boltstore: put balance: %w", err)
	}
	return nil
}
