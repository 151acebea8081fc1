package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ryft/crypto"
	"ryft/native/ryft"
)

const (
	defaultListenAddress = ":8470"
	defaultDataDir       = "./ryft-data"
	defaultJournalFile   = "journal.db"
	defaultClockSkew     = 2 * time.Minute
)

// Config captures the runtime settings for the ledger daemon.
type Config struct {
	ListenAddress string            `toml:"ListenAddress" yaml:"listen"`
	DataDir       string            `toml:"DataDir" yaml:"data_dir"`
	Environment   string            `toml:"Environment" yaml:"environment"`
	LogFile       string            `toml:"LogFile" yaml:"log_file"`
	Ledger        LedgerConfig      `toml:"Ledger" yaml:"ledger"`
	Auth          AuthConfig        `toml:"Auth" yaml:"auth"`
	RateLimits    []RateLimitConfig `toml:"RateLimits" yaml:"rate_limits"`
	Journal       JournalConfig     `toml:"Journal" yaml:"journal"`
	Telemetry     TelemetryConfig   `toml:"Telemetry" yaml:"telemetry"`
	Genesis       []GenesisAccount  `toml:"Genesis" yaml:"genesis"`
}

// LedgerConfig seeds the pool ledger on first boot.
type LedgerConfig struct {
	FeeRateBps uint64   `toml:"FeeRateBps" yaml:"fee_rate_bps"`
	Admin      string   `toml:"Admin" yaml:"admin"`
	Treasury   string   `toml:"Treasury" yaml:"treasury"`
	AllowList  []string `toml:"AllowList" yaml:"allow_list"`
	Paused     bool     `toml:"Paused" yaml:"paused"`

	admin     crypto.Address
	treasury  crypto.Address
	allowList []crypto.Address
}

// AuthConfig describes the bearer token verification settings.
type AuthConfig struct {
	HMACSecret string `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer     string `toml:"Issuer" yaml:"issuer"`
	Audience   string `toml:"Audience" yaml:"audience"`
	ClockSkew  string `toml:"ClockSkew" yaml:"clock_skew"`

	clockSkew time.Duration
}

// RateLimitConfig throttles one route group.
type RateLimitConfig struct {
	Route             string  `toml:"Route" yaml:"route"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// JournalConfig points at the SQLite event archive.
type JournalConfig struct {
	Path string `toml:"Path" yaml:"path"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Headers  string `toml:"Headers" yaml:"headers"`
}

// GenesisAccount is a token allocation credited once when the ledger is
// bootstrapped.
type GenesisAccount struct {
	Address string `toml:"Address" yaml:"address"`
	Balance uint64 `toml:"Balance" yaml:"balance"`

	address crypto.Address
}

// Load reads the configuration from disk, choosing the decoder by file
// extension, then normalizes and validates the result. RYFT_ENV overrides the
// configured environment.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(raw), &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if env := strings.TrimSpace(os.Getenv("RYFT_ENV")); env != "" {
		cfg.Environment = env
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	cfg.Journal.Path = strings.TrimSpace(cfg.Journal.Path)
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.DataDir, defaultJournalFile)
	}
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	cfg.Ledger.Admin = strings.TrimSpace(cfg.Ledger.Admin)
	cfg.Ledger.Treasury = strings.TrimSpace(cfg.Ledger.Treasury)
	members := make([]string, 0, len(cfg.Ledger.AllowList))
	for _, member := range cfg.Ledger.AllowList {
		if trimmed := strings.TrimSpace(member); trimmed != "" {
			members = append(members, trimmed)
		}
	}
	cfg.Ledger.AllowList = members
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.ClockSkew = strings.TrimSpace(cfg.Auth.ClockSkew)
	for i := range cfg.RateLimits {
		cfg.RateLimits[i].Route = strings.TrimSpace(cfg.RateLimits[i].Route)
	}
	for i := range cfg.Genesis {
		cfg.Genesis[i].Address = strings.TrimSpace(cfg.Genesis[i].Address)
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.Ledger.validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		if limit.Route == "" {
			return fmt.Errorf("rate_limits: route required")
		}
		if _, dup := seen[limit.Route]; dup {
			return fmt.Errorf("rate_limits: duplicate route %q", limit.Route)
		}
		seen[limit.Route] = struct{}{}
		if limit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate_limits: %s: requests per minute must be positive", limit.Route)
		}
	}
	for i := range cfg.Genesis {
		addr, err := crypto.DecodeAddress(cfg.Genesis[i].Address)
		if err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		cfg.Genesis[i].address = addr
	}
	return nil
}

func (cfg *LedgerConfig) validate() error {
	if cfg.Admin == "" {
		return fmt.Errorf("admin required")
	}
	admin, err := crypto.DecodeAddress(cfg.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	cfg.admin = admin
	if cfg.Treasury != "" {
		treasury, err := crypto.DecodeAddress(cfg.Treasury)
		if err != nil {
			return fmt.Errorf("treasury: %w", err)
		}
		cfg.treasury = treasury
	}
	if len(cfg.AllowList) > ryft.MaxAllowListSize {
		return fmt.Errorf("allow_list holds at most %d borrowers", ryft.MaxAllowListSize)
	}
	cfg.allowList = make([]crypto.Address, 0, len(cfg.AllowList))
	for _, member := range cfg.AllowList {
		addr, err := crypto.DecodeAddress(member)
		if err != nil {
			return fmt.Errorf("allow_list: %w", err)
		}
		cfg.allowList = append(cfg.allowList, addr)
	}
	return nil
}

func (cfg *AuthConfig) validate() error {
	if cfg.HMACSecret == "" {
		return fmt.Errorf("hmac secret required")
	}
	cfg.clockSkew = defaultClockSkew
	if cfg.ClockSkew != "" {
		skew, err := time.ParseDuration(cfg.ClockSkew)
		if err != nil {
			return fmt.Errorf("clock skew: %w", err)
		}
		if skew < 0 {
			return fmt.Errorf("clock skew must not be negative")
		}
		cfg.clockSkew = skew
	}
	return nil
}

// AdminAddress returns the decoded administrator.
func (cfg LedgerConfig) AdminAddress() crypto.Address { return cfg.admin }

// TreasuryAddress returns the decoded treasury. It defaults to the zero address.
func (cfg LedgerConfig) TreasuryAddress() crypto.Address { return cfg.treasury }

// AllowListAddresses returns the decoded allow-list in configuration order.
func (cfg LedgerConfig) AllowListAddresses() []crypto.Address {
	return append([]crypto.Address(nil), cfg.allowList...)
}

// SkewDuration returns the parsed token clock skew.
func (cfg AuthConfig) SkewDuration() time.Duration {
	if cfg.clockSkew <= 0 {
		return defaultClockSkew
	}
	return cfg.clockSkew
}

// Addr returns the decoded genesis account address.
func (g GenesisAccount) Addr() crypto.Address { return g.address }

// IsDev reports whether the daemon runs in the development environment.
func (cfg Config) IsDev() bool {
	return cfg.Environment == "" || cfg.Environment == "dev"
}
