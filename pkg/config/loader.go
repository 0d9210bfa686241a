package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg, which must be a pointer to a
// struct tagged with `env` / `envDefault`.
//
//	type Config struct {
//	    Port       int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    SessionTTL int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
