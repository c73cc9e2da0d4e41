package giveaway

import (
	"fmt"
	"math/bits"
)

// MaxSlugLength bounds slugs so they stay usable as URL path segments.
const MaxSlugLength = 256

// ValidateSlug checks that slug is non-empty, at most MaxSlugLength bytes,
// and matches ^[A-Za-z0-9_-]+$.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidSlug, len(slug), MaxSlugLength)
	}
	for i := 0; i < len(slug); i++ {
		if !slugByte(slug[i]) {
			return fmt.Errorf("%w: character %q at offset %d", ErrInvalidSlug, slug[i], i)
		}
	}
	return nil
}

func slugByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

// PoolSize returns shareAmount*recipientCount, rejecting zero inputs and overflow.
func PoolSize(shareAmount, recipientCount uint64) (uint64, error) {
	if shareAmount == 0 || recipientCount == 0 {
		return 0, ErrInvalidAmount
	}
	hi, lo := bits.Mul64(shareAmount, recipientCount)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrAmountOverflow, shareAmount, recipientCount)
	}
	return lo, nil
}

// ValidateParams checks the slug and the pool bounds of p.
func ValidateParams(p Params) error {
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}
	_, err := PoolSize(p.ShareAmount, p.RecipientCount)
	return err
}
