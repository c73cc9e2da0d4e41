// Package custody derives the escrow addresses that hold each giveaway's pool.
//
// Two schemes are provided. HashCustody derives a keyless address from the
// registry address and the giveaway index, so funds can only move through
// the giveaway state machine. HDCustody derives
//
//	m/44'/236'/{account}'/0/{index}
//
// from a BIP32 seed so an operator can later prove control of every escrow.
package custody

import (
	"encoding/binary"
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/libgiveaway-go/ledger"
)

const (
	// BIP44 path constants.
	PurposeBIP44     = 44
	CoinTypeGiveaway = 236
	ExternalChain    = 0

	// MaxEscrowIndex is the largest non-hardened child index.
	MaxEscrowIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000

	hashDomain = "giveaway-escrow"
)

// Deriver assigns an escrow address to the giveaway at a registry index.
type Deriver interface {
	EscrowAddress(index uint64) (ledger.Address, error)
}

// HashCustody derives escrow addresses as
// hash160(registry || "giveaway-escrow" || index).
type HashCustody struct {
	Registry ledger.Address
}

// NewHashCustody returns a keyless deriver bound to a registry address.
func NewHashCustody(registry ledger.Address) *HashCustody {
	return &HashCustody{Registry: registry}
}

// EscrowAddress implements Deriver.
func (h *HashCustody) EscrowAddress(index uint64) (ledger.Address, error) {
	buf := make([]byte, 0, ledger.AddressSize+len(hashDomain)+8)
	buf = append(buf, h.Registry[:]...)
	buf = append(buf, hashDomain...)
	buf = binary.BigEndian.AppendUint64(buf, index)
	return ledger.AddressFromBytes(bsvhash.Hash160(buf))
}

// HDCustody derives escrow keys from a BIP32 account.
type HDCustody struct {
	chain *bip32.ExtendedKey // m/44'/236'/account'/0
	path  string
}

// NewHDCustody creates an HD deriver from a BIP39 seed.
func NewHDCustody(seed []byte, mainnet bool, account uint32) (*HDCustody, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if account >= Hardened {
		return nil, fmt.Errorf("%w: account %d", ErrIndexOutOfRange, account)
	}

	net := &chaincfg.TestNet
	if mainnet {
		net = &chaincfg.MainNet
	}
	master, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	key := master
	for _, idx := range []uint32{PurposeBIP44 + Hardened, CoinTypeGiveaway + Hardened, account + Hardened, ExternalChain} {
		key, err = key.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
		}
	}

	return &HDCustody{
		chain: key,
		path:  fmt.Sprintf("m/44'/%d'/%d'/%d", CoinTypeGiveaway, account, ExternalChain),
	}, nil
}

// EscrowKey derives the private key controlling the escrow at index.
func (h *HDCustody) EscrowKey(index uint64) (*ec.PrivateKey, error) {
	if index > MaxEscrowIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	child, err := h.chain.Child(uint32(index))
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %w", ErrDerivationFailed, index, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	return priv, nil
}

// EscrowAddress implements Deriver.
func (h *HDCustody) EscrowAddress(index uint64) (ledger.Address, error) {
	priv, err := h.EscrowKey(index)
	if err != nil {
		return ledger.ZeroAddress, err
	}
	return ledger.AddressFromPublicKey(priv.PubKey())
}

// Path returns the human-readable derivation path of the escrow at index.
func (h *HDCustody) Path(index uint64) string {
	return fmt.Sprintf("%s/%d", h.path, index)
}

// SeedFromMnemonic derives a 64-byte BIP39 seed from mnemonic + optional passphrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("custody: failed to derive seed: %w", err)
	}
	return seed, nil
}
