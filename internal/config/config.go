package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment surface of the server.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	APIToken string `env:"API_TOKEN" envDefault:"dev-token"`

	// DBDialect selects the storage backend: "sqlite" (default, embedded,
	// enough for a single-party deployment) or "postgres".
	DBDialect string `env:"DB_DIALECT" envDefault:"sqlite"`
	DBDSN     string `env:"DB_DSN"`

	// AttackWindow is how long a victim has to dodge an incoming raid.
	AttackWindow time.Duration `env:"ATTACK_WINDOW" envDefault:"10s"`
	// BalanceFloor is the minimum balance a settlement leaves the victim.
	BalanceFloor int64 `env:"BALANCE_FLOOR" envDefault:"1"`
	// SweepInterval is how often the recovery sweep looks for overdue
	// pending attempts.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`

	StartingBalance  int64    `env:"STARTING_BALANCE" envDefault:"20"`
	ShieldsPerMember int      `env:"SHIELDS_PER_MEMBER" envDefault:"1"`
	SeedMembers      []string `env:"SEED_MEMBERS" envSeparator:","`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.AttackWindow <= 0 {
		return Config{}, fmt.Errorf("ATTACK_WINDOW must be positive, got %s", cfg.AttackWindow)
	}
	if cfg.BalanceFloor < 0 {
		return Config{}, fmt.Errorf("BALANCE_FLOOR must not be negative, got %d", cfg.BalanceFloor)
	}
	return cfg, nil
}
