// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Address
// fields are only checked for presence; they are resolved at startup.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.FeeRateBps > maxFeeRateBps {
		return ErrInvalidFeeRate
	}

	if strings.TrimSpace(cfg.Admin) == "" {
		return ErrMissingAdmin
	}

	switch cfg.Custody {
	case CustodyHash:
	case CustodyHD:
		if cfg.MnemonicFile == "" {
			return ErrInvalidCustody
		}
	default:
		return ErrInvalidCustody
	}

	return nil
}

// Mainnet reports whether addresses should be rendered for mainnet.
func (c Config) Mainnet() bool { return c.Network == "mainnet" }
