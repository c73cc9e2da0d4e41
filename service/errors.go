package service

import "errors"

var (
	// ErrLocked indicates another process holds the data directory.
	ErrLocked = errors.New("service: data directory locked")

	// ErrRegistryMismatch indicates the persisted registry belongs to a
	// different admin or registry account than the configuration names.
	ErrRegistryMismatch = errors.New("service: persisted registry does not match configuration")

	// ErrReadMnemonic indicates the HD custody mnemonic file could not be read.
	ErrReadMnemonic = errors.New("service: read mnemonic file")
)
