package custody

import "errors"

var (
	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("custody: invalid seed")

	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("custody: invalid BIP39 mnemonic")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("custody: key derivation failed")

	// ErrIndexOutOfRange indicates an escrow index exceeds the BIP32 non-hardened max.
	ErrIndexOutOfRange = errors.New("custody: escrow index exceeds maximum (2^31-1)")
)
