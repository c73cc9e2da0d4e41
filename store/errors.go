package store

import "errors"

var (
	// ErrNotFound indicates no registry has been saved yet.
	ErrNotFound = errors.New("store: registry not found")

	// ErrSlugNotFound indicates no giveaway is stored under a slug.
	ErrSlugNotFound = errors.New("store: slug not found")

	// ErrCorrupt indicates persisted data that cannot be decoded or is
	// inconsistent.
	ErrCorrupt = errors.New("store: corrupt data")

	// ErrSlugConflict indicates a record whose slug is stored under another index.
	ErrSlugConflict = errors.New("store: slug bound to another giveaway")
)
