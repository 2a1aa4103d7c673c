package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries the process configuration, parsed from the environment.
type Config struct {
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret     string        `env:"JWT_SECRET,required"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"100"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
