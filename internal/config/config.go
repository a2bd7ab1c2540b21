// Package config loads application configuration from defaults, an optional
// YAML file and SUBLEDGER_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable. Nested keys use a double
// underscore: SUBLEDGER_DATABASE__URL sets database.url.
const EnvPrefix = "SUBLEDGER_"

// DefaultProgramID is the subscription program address.
const DefaultProgramID = "5tLcC7qmenarVTNEdZ3UnDUNysdSQhhaq21ehsVtjyia"

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	JWT      JWTConfig      `koanf:"jwt"`
	CORS     CORSConfig     `koanf:"cors"`
	Program  ProgramConfig  `koanf:"program"`
	Funds    FundsConfig    `koanf:"funds"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL              string        `koanf:"url"`
	MaxOpenConns     int           `koanf:"max_open_conns"`
	MaxIdleConns     int           `koanf:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
	ConnectAttempts  int           `koanf:"connect_attempts"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	MigrationsPath   string        `koanf:"migrations_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig contains signer token settings.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ProgramConfig contains subscription program constants.
type ProgramConfig struct {
	ID          string        `koanf:"id"`
	FeeLamports uint64        `koanf:"fee_lamports"`
	Duration    time.Duration `koanf:"duration"`
	Treasury    string        `koanf:"treasury"`
}

// ProgramID returns the parsed program address. Call Validate first.
func (p ProgramConfig) ProgramID() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(p.ID)
}

// TreasuryKey returns the parsed fee destination. Call Validate first.
func (p ProgramConfig) TreasuryKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(p.Treasury)
}

// FundsConfig contains native balance settings.
type FundsConfig struct {
	FaucetEnabled     bool   `koanf:"faucet_enabled"`
	FaucetMaxLamports uint64 `koanf:"faucet_max_lamports"`
}

// AuthConfig contains signer challenge settings.
type AuthConfig struct {
	ChallengeTTL   time.Duration `koanf:"challenge_ttl"`
	ChallengeRate  float64       `koanf:"challenge_rate"`
	ChallengeBurst int           `koanf:"challenge_burst"`
}

// Default returns configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:     25,
			MaxIdleConns:     5,
			ConnMaxLifetime:  5 * time.Minute,
			ConnectTimeout:   30 * time.Second,
			ConnectAttempts:  5,
			StatementTimeout: 15 * time.Second,
			MigrationsPath:   "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			AccessTokenDuration: 15 * time.Minute,
		},
		Program: ProgramConfig{
			ID:          DefaultProgramID,
			FeeLamports: 10_000_000,
			Duration:    30 * 24 * time.Hour,
		},
		Funds: FundsConfig{
			FaucetMaxLamports: 2_000_000_000,
		},
		Auth: AuthConfig{
			ChallengeTTL:   5 * time.Minute,
			ChallengeRate:  1,
			ChallengeBurst: 5,
		},
	}
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.access_token_duration must be positive"))
	}
	if _, err := solana.PublicKeyFromBase58(c.Program.ID); err != nil {
		errs = append(errs, fmt.Errorf("program.id: %w", err))
	}
	if _, err := solana.PublicKeyFromBase58(c.Program.Treasury); err != nil {
		errs = append(errs, fmt.Errorf("program.treasury: %w", err))
	}
	if c.Program.FeeLamports == 0 {
		errs = append(errs, errors.New("program.fee_lamports must be positive"))
	}
	if c.Program.Duration < time.Second {
		errs = append(errs, errors.New("program.duration must be at least 1s"))
	}
	if c.Auth.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("auth.challenge_ttl must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
