// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidFeeRate indicates a fee rate above 10000 basis points.
	ErrInvalidFeeRate = errors.New("config: fee rate must be between 0 and 10000 basis points")

	// ErrInvalidCustody indicates an unknown custody scheme or missing HD seed.
	ErrInvalidCustody = errors.New("config: invalid custody (must be \"hash\" or \"hd\" with a mnemonic file)")

	// ErrMissingAdmin indicates no admin destination is configured.
	ErrMissingAdmin = errors.New("config: admin must be set")
)
