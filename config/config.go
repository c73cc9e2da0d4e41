// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads giveaway service settings from a key = value file or,
// for .yaml/.yml paths, a YAML document.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// CustodyHash derives keyless escrow addresses from the registry address.
	CustodyHash = "hash"

	// CustodyHD derives escrow addresses from a BIP32 seed.
	CustodyHD = "hd"

	defaultFeeRateBps = 100
	maxFeeRateBps     = 10000
)

// Config holds the service settings. Address fields accept a hex or base58
// ledger address, or a paymail handle.
type Config struct {
	DataDir   string `yaml:"datadir"`
	Network   string `yaml:"network"`
	LogLevel  string `yaml:"loglevel"`
	PrettyLog bool   `yaml:"prettylog"`

	FeeRateBps uint64 `yaml:"feerate"`
	Admin      string `yaml:"admin"`
	Registry   string `yaml:"registry"`   // registry account; derived from admin when empty
	FeeAddress string `yaml:"feeaddress"` // defaults to admin

	Custody      string `yaml:"custody"`
	HDAccount    uint32 `yaml:"hdaccount"`
	MnemonicFile string `yaml:"mnemonicfile"`

	DNSSEC      bool   `yaml:"dnssec"`
	DNSUpstream string `yaml:"dnsupstream"`
}

// DefaultDataDir returns ~/.giveaway, or .giveaway when the home directory
// is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".giveaway"
	}
	return filepath.Join(home, ".giveaway")
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// DefaultConfig returns the settings used for keys a file leaves unset.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		Network:    "mainnet",
		LogLevel:   "info",
		FeeRateBps: defaultFeeRateBps,
		Custody:    CustodyHash,
	}
}

// LoadConfig reads path over DefaultConfig. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
		}
		return cfg, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "prettylog":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("prettylog: %w", err)
		}
		c.PrettyLog = b
	case "feerate":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("feerate: %w", err)
		}
		c.FeeRateBps = n
	case "admin":
		c.Admin = value
	case "registry":
		c.Registry = value
	case "feeaddress":
		c.FeeAddress = value
	case "custody":
		c.Custody = value
	case "hdaccount":
		n, err := strconv.ParseUint(value, 10, 31)
		if err != nil {
			return fmt.Errorf("hdaccount: %w", err)
		}
		c.HDAccount = uint32(n)
	case "mnemonicfile":
		c.MnemonicFile = value
	case "dnssec":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("dnssec: %w", err)
		}
		c.DNSSEC = b
	case "dnsupstream":
		c.DNSUpstream = value
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories. The format
// follows the extension, as in LoadConfig.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var data []byte
	if isYAML(path) {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("config: encode yaml: %w", err)
		}
		data = out
	} else {
		data = []byte(cfg.keyValue())
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c Config) keyValue() string {
	var b strings.Builder
	b.WriteString("# Giveaway Configuration\n\n")
	kv := func(k, v string) { fmt.Fprintf(&b, "%s = %s\n", k, v) }
	kv("datadir", c.DataDir)
	kv("network", c.Network)
	kv("loglevel", c.LogLevel)
	kv("prettylog", strconv.FormatBool(c.PrettyLog))
	b.WriteString("\n# Registry\n")
	kv("feerate", strconv.FormatUint(c.FeeRateBps, 10))
	kv("admin", c.Admin)
	kv("registry", c.Registry)
	kv("feeaddress", c.FeeAddress)
	b.WriteString("\n# Escrow custody\n")
	kv("custody", c.Custody)
	kv("hdaccount", strconv.FormatUint(uint64(c.HDAccount), 10))
	kv("mnemonicfile", c.MnemonicFile)
	b.WriteString("\n# Paymail resolution\n")
	kv("dnssec", strconv.FormatBool(c.DNSSEC))
	kv("dnsupstream", c.DNSUpstream)
	return b.String()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
