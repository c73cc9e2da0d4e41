package factory

import (
	"fmt"

	"github.com/bitfsorg/libgiveaway-go/giveaway"
)

var (
	// ErrSlugTaken indicates the slug is registered or reserved by an
	// in-flight creation. Cancelled giveaways keep their slugs.
	ErrSlugTaken = fmt.Errorf("%w: custom url already used", giveaway.ErrConflict)

	// ErrNotAdmin indicates the caller is not the registry admin.
	ErrNotAdmin = fmt.Errorf("%w: only the admin can perform this action", giveaway.ErrUnauthorized)

	// ErrIndexOutOfRange indicates a giveaway index past the end of the registry.
	ErrIndexOutOfRange = fmt.Errorf("%w: giveaway index out of range", giveaway.ErrInvalidInput)

	// ErrGiveawayNotFound indicates no giveaway is registered under a slug.
	ErrGiveawayNotFound = fmt.Errorf("%w: giveaway not found", giveaway.ErrInvalidInput)

	// ErrInvalidFeeRate indicates a fee rate above MaxFeeRateBps.
	ErrInvalidFeeRate = fmt.Errorf("%w: invalid fee rate", giveaway.ErrInvalidInput)

	// ErrInvalidSnapshot indicates a snapshot that cannot be restored.
	ErrInvalidSnapshot = fmt.Errorf("%w: invalid registry snapshot", giveaway.ErrInvalidInput)
)
