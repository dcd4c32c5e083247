// Package daemon holds the creditd configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from ~/.crediton/config.toml.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Denom    DenomConfig    `toml:"denomination"`
	Credit   CreditConfig   `toml:"credit"`
	Reserve  ReserveConfig  `toml:"reserve"`
	Fees     FeesConfig     `toml:"fees"`
	Roles    RolesConfig    `toml:"roles"`
}

// RolesConfig declares the privileged identities. Membership is granted
// at runtime and persisted; roles are static per deployment.
type RolesConfig struct {
	Admins    []string `toml:"admins"`
	Operators []string `toml:"operators"`
	Issuers   []string `toml:"issuers"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// DatabaseConfig configures the sqlite store.
type DatabaseConfig struct {
	Path string `toml:"path"` // empty means <home>/crediton.db
}

// DenomConfig sets the decimal scales of the two monies.
type DenomConfig struct {
	LedgerDecimals  int32 `toml:"ledger_decimals"`
	ReserveDecimals int32 `toml:"reserve_decimals"`
}

// CreditConfig sets the default underwriting period shape.
type CreditConfig struct {
	PeriodDays int `toml:"period_days"`
	GraceDays  int `toml:"grace_days"`
}

// ReserveConfig configures the assurance pool.
type ReserveConfig struct {
	AssetID   string  `toml:"asset_id"`
	TargetRTD float64 `toml:"target_rtd"`
}

// FeesConfig sets the initial fee rate.
type FeesConfig struct {
	TargetRatePPM int64 `toml:"target_rate_ppm"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8480,
			Metrics: true,
		},
		Database: DatabaseConfig{},
		Denom: DenomConfig{
			LedgerDecimals:  6,
			ReserveDecimals: 6,
		},
		Credit: CreditConfig{
			PeriodDays: 90,
			GraceDays:  30,
		},
		Reserve: ReserveConfig{
			AssetID:   "usd",
			TargetRTD: 0.20,
		},
		Fees: FeesConfig{
			TargetRatePPM: 0,
		},
		Roles: RolesConfig{
			Admins: []string{"admin"},
		},
	}
}

// Home returns the crediton home directory. CREDITON_HOME overrides the
// default ~/.crediton.
func Home() string {
	if env := os.Getenv("CREDITON_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crediton")
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// DatabasePath resolves the sqlite file path, defaulting under Home().
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(Home(), "crediton.db")
}

// Addr returns the host:port the API listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// Load reads the config file at path, falling back to defaults for a
// missing file. Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as TOML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if c.Credit.PeriodDays <= 0 {
		return fmt.Errorf("credit.period_days must be positive: %d", c.Credit.PeriodDays)
	}
	if c.Credit.GraceDays < 0 {
		return fmt.Errorf("credit.grace_days must not be negative: %d", c.Credit.GraceDays)
	}
	if c.Reserve.TargetRTD < 0 || c.Reserve.TargetRTD > 1 {
		return fmt.Errorf("reserve.target_rtd out of range: %f", c.Reserve.TargetRTD)
	}
	if c.Fees.TargetRatePPM < 0 || c.Fees.TargetRatePPM > 1_000_000 {
		return fmt.Errorf("fees.target_rate_ppm out of range: %d", c.Fees.TargetRatePPM)
	}
	return nil
}
