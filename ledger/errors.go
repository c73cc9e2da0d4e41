package ledger

import "errors"

var (
	// ErrInvalidAddress indicates an address string or byte slice is malformed.
	ErrInvalidAddress = errors.New("ledger: invalid address")

	// ErrZeroAddress indicates a transfer to or from the zero address.
	ErrZeroAddress = errors.New("ledger: zero address")

	// ErrInsufficientBalance indicates the sender does not hold enough tokens.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInsufficientAllowance indicates the spender was not approved for the amount.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")

	// ErrZeroAmount indicates a transfer or mint of zero tokens.
	ErrZeroAmount = errors.New("ledger: zero amount")

	// ErrBalanceOverflow indicates a credit would overflow the recipient balance.
	ErrBalanceOverflow = errors.New("ledger: balance overflow")

	// ErrUnknownToken indicates a token ID could not be resolved.
	ErrUnknownToken = errors.New("ledger: unknown token")
)
