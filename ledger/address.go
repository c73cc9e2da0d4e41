package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// AddressSize is the length of a P2PKH public key hash.
const AddressSize = 20

// Address identifies a token holder by its 20-byte public key hash.
type Address [AddressSize]byte

// ZeroAddress is the unset address. Tokens can never be sent to it.
var ZeroAddress Address

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// String returns the hex encoding of the hash.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Base58 returns the base58check P2PKH address string for the given network.
func (a Address) Base58(mainnet bool) (string, error) {
	addr, err := script.NewAddressFromPublicKeyHash(a[:], mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr.AddressString, nil
}

// MarshalText implements encoding.TextMarshaler using hex.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the same
// forms as ParseAddress.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses either a 40-character hex public key hash or a
// base58check P2PKH address (mainnet or testnet).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if len(s) == hex.EncodedLen(AddressSize) {
		if raw, err := hex.DecodeString(s); err == nil {
			return AddressFromBytes(raw)
		}
	}

	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	return AddressFromBytes([]byte(addr.PublicKeyHash))
}

// AddressFromBytes copies a 20-byte hash into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromPublicKey returns the hash160 address of a public key.
func AddressFromPublicKey(pub *ec.PublicKey) (Address, error) {
	if pub == nil {
		return ZeroAddress, fmt.Errorf("%w: nil public key", ErrInvalidAddress)
	}
	return AddressFromBytes(pub.Hash())
}
