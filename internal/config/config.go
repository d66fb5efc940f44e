// Package config loads node settings from TOML. A missing key keeps its
// default; flags applied by the CLI override both.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	tomlv2 "github.com/pelletier/go-toml/v2"
)

// Config is the node configuration.
type Config struct {
	ChainID     uint64
	Database    string
	LogLevel    string
	MaxSteps    int
	MaxDepth    int
	HTTPAddr    string
	CORSOrigins []string
	// Genesis maps account addresses to decimal balances.
	Genesis map[string]string
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	ChainID     uint64            `toml:"chain_id"`
	Database    string            `toml:"database"`
	LogLevel    string            `toml:"log_level"`
	MaxSteps    int               `toml:"max_steps"`
	MaxDepth    int               `toml:"max_depth"`
	HTTPAddr    string            `toml:"http_addr"`
	CORSOrigins []string          `toml:"cors_origins"`
	Genesis     map[string]string `toml:"genesis"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ChainID:  1337,
		Database: "daokit.db",
		LogLevel: "info",
		MaxSteps: 1000,
		MaxDepth: 1024,
		HTTPAddr: ":8545",
		Genesis:  map[string]string{},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("chain_id") {
		cfg.ChainID = raw.ChainID
	}
	if meta.IsDefined("database") {
		cfg.Database = strings.TrimSpace(raw.Database)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("max_steps") {
		cfg.MaxSteps = raw.MaxSteps
	}
	if meta.IsDefined("max_depth") {
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	for addr, amount := range raw.Genesis {
		cfg.Genesis[addr] = strings.TrimSpace(amount)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id must be positive")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if _, err := c.Alloc(); err != nil {
		return err
	}
	return nil
}

// Alloc decodes the genesis allocation.
func (c Config) Alloc() (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(c.Genesis))
	for addr, amount := range c.Genesis {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("genesis: %q is not an address", addr)
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("genesis %s: balance %q: %w", addr, amount, err)
		}
		out[common.HexToAddress(addr)] = v
	}
	return out, nil
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}

// Write encodes c as config.toml.
func Write(w io.Writer, c Config) error {
	raw := fileConfig{
		ChainID:     c.ChainID,
		Database:    c.Database,
		LogLevel:    c.LogLevel,
		MaxSteps:    c.MaxSteps,
		MaxDepth:    c.MaxDepth,
		HTTPAddr:    c.HTTPAddr,
		CORSOrigins: c.CORSOrigins,
		Genesis:     c.Genesis,
	}
	enc := tomlv2.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Accounts returns the genesis accounts in address order.
func (c Config) Accounts() []string {
	out := make([]string, 0, len(c.Genesis))
	for addr := range c.Genesis {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
