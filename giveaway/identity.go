package giveaway

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// identityInfo is the HKDF info string for identity fingerprints.
const identityInfo = "giveaway-identity"

// Fingerprint is the stored form of an external identity token. Raw social
// handles are never kept; only their HKDF digest salted with the slug.
type Fingerprint [32]byte

// IdentityFingerprint derives the fingerprint of identity within the
// giveaway identified by slug.
//
//	fp = HKDF-SHA256(IKM = identity, Salt = slug, Info = "giveaway-identity")
func IdentityFingerprint(slug, identity string) Fingerprint {
	var fp Fingerprint
	r := hkdf.New(sha256.New, []byte(identity), []byte(slug), []byte(identityInfo))
	// HKDF-SHA256 can produce up to 8160 bytes; 32 never fails.
	_, _ = io.ReadFull(r, fp[:])
	return fp
}
