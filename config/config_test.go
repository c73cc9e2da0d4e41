// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const testAdmin = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

// validConfig returns DefaultConfig with the required admin set.
func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Admin = testAdmin
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Network", cfg.Network, "mainnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"PrettyLog", cfg.PrettyLog, false},
		{"FeeRateBps", cfg.FeeRateBps, uint64(100)},
		{"Custody", cfg.Custody, CustodyHash},
		{"Admin", cfg.Admin, ""},
		{"DNSSEC", cfg.DNSSEC, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

func TestDefaultDataDir_EndsWithDotGiveaway(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".giveaway") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".giveaway")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	original := Config{
		DataDir:      "/tmp/test-giveaway",
		Network:      "testnet",
		LogLevel:     "debug",
		PrettyLog:    true,
		FeeRateBps:   250,
		Admin:        "admin@example.com",
		Registry:     "aa" + strings.Repeat("00", 19),
		FeeAddress:   "fees@example.com",
		Custody:      CustodyHD,
		HDAccount:    3,
		MnemonicFile: "/secrets/mnemonic",
		DNSSEC:       true,
		DNSUpstream:  "1.1.1.1:53",
	}

	for _, name := range []string{"config", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SaveConfig(path, original); err != nil {
				t.Fatalf("SaveConfig: %v", err)
			}
			loaded, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if loaded != original {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
			}
		})
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

func TestSaveConfig_OutputContainsHeaderAndKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := SaveConfig(path, validConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Giveaway Configuration") {
		t.Error("saved config should contain header '# Giveaway Configuration'")
	}
	for _, key := range []string{"datadir", "network", "loglevel", "feerate", "admin", "feeaddress", "custody", "dnssec"} {
		if !strings.Contains(content, key+" = ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// LoadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidLine(t *testing.T) {
	for _, content := range []string{"this-is-not-key-value\n", " = value\n", "feerate = lots\n", "prettylog = maybe\n", "hdaccount = 2147483648\n"} {
		_, err := LoadConfig(writeFile(t, "config", content))
		if !errors.Is(err, ErrInvalidConfigLine) {
			t.Errorf("LoadConfig %q: got %v, want ErrInvalidConfigLine", content, err)
		}
	}
}

func TestLoadConfigCommentsAndBlanks(t *testing.T) {
	content := `# This is a comment
network = testnet

# Another comment
loglevel = debug
admin = fees@example.com
`
	cfg, err := LoadConfig(writeFile(t, "config", content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Admin != "fees@example.com" {
		t.Errorf("Admin = %q, want %q", cfg.Admin, "fees@example.com")
	}
	// Unset fields keep their defaults.
	if cfg.FeeRateBps != 100 {
		t.Errorf("FeeRateBps = %d, want default 100", cfg.FeeRateBps)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config", "futurekey = futurevalue\nnetwork = testnet\n"))
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

func TestLoadConfig_KeysAreCaseInsensitive(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config", "FeeRate = 42\nDNSSEC = true\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.FeeRateBps != 42 || !cfg.DNSSEC {
		t.Errorf("got feerate=%d dnssec=%v, want 42 true", cfg.FeeRateBps, cfg.DNSSEC)
	}
}

func TestLoadConfig_MultipleEquals(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config", "mnemonicfile=/tmp/a=b.txt\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MnemonicFile != "/tmp/a=b.txt" {
		t.Errorf("MnemonicFile = %q, want %q", cfg.MnemonicFile, "/tmp/a=b.txt")
	}
}

func TestLoadConfig_EmptyValue(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config", "network=\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "" {
		t.Errorf("Network = %q, want empty string", cfg.Network)
	}
}

func TestLoadConfig_YAMLPartial(t *testing.T) {
	content := `network: regtest
admin: admin@example.com
feerate: 0
`
	cfg, err := LoadConfig(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "regtest" || cfg.Admin != "admin@example.com" || cfg.FeeRateBps != 0 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_YAMLInvalid(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "config.yml", "feerate: [1, 2\n"))
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad yaml: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	path := writeFile(t, "config", "network=testnet\n")
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigValid(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Errorf("ValidateConfig(validConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"empty_datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad_network", func(c *Config) { c.Network = "devnet" }, ErrInvalidNetwork},
		{"empty_network", func(c *Config) { c.Network = "" }, ErrInvalidNetwork},
		{"bad_loglevel", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"fee_too_high", func(c *Config) { c.FeeRateBps = 10001 }, ErrInvalidFeeRate},
		{"no_admin", func(c *Config) { c.Admin = "  " }, ErrMissingAdmin},
		{"bad_custody", func(c *Config) { c.Custody = "vault" }, ErrInvalidCustody},
		{"hd_without_mnemonic", func(c *Config) { c.Custody = CustodyHD }, ErrInvalidCustody},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(&cfg)
			if err := ValidateConfig(cfg); !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error", "dEbUg"} {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

func TestValidateConfig_HDCustody(t *testing.T) {
	cfg := validConfig()
	cfg.Custody = CustodyHD
	cfg.MnemonicFile = "/secrets/mnemonic"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig hd custody: %v", err)
	}
}

func TestMainnet(t *testing.T) {
	cfg := validConfig()
	if !cfg.Mainnet() {
		t.Error("default network should be mainnet")
	}
	cfg.Network = "testnet"
	if cfg.Mainnet() {
		t.Error("testnet reported as mainnet")
	}
}

// ---------------------------------------------------------------------------
// ConfigPath tests
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.giveaway")
	want := filepath.Join("/home/user/.giveaway", "config")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

func TestConfigPath_WithTrailingSlash(t *testing.T) {
	got := ConfigPath("/foo/")
	want := filepath.Join("/foo", "config")
	if got != want {
		t.Errorf("ConfigPath(%q) = %q, want %q", "/foo/", got, want)
	}
}
