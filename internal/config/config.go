// Package config reads service configuration from environment variables
// with command-line flag fallbacks.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	ServiceTokenSecret string        `env:"SERVICE_TOKEN_SECRET"`
	BotToken           string        `env:"BOT_TOKEN"`
	YooMoneyToken      string        `env:"YOOMONEY_TOKEN"`
	YooMoneyWallet     string        `env:"YOOMONEY_WALLET"`
	FreeUsageCooldown  time.Duration `env:"FREE_USAGE_COOLDOWN" envDefault:"24h"`
	ProcessingTimeout  time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"90s"`
	WorkerCount        int           `env:"WORKER_COUNT" envDefault:"10"`
	MaxAttempts        int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileMinAge    time.Duration `env:"RECONCILE_MIN_AGE" envDefault:"5m"`
	ThrottlePerSecond  float64       `env:"THROTTLE_PER_SECOND" envDefault:"1"`
	ThrottleBurst      int           `env:"THROTTLE_BURST" envDefault:"3"`
}

// Parse reads the configuration from flags and environment variables;
// environment wins where both are set.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required")
	}
	return cfg, nil
}
