package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configs that check cross-field invariants
// after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into cfg using its `env` tags, then runs
// cfg.Validate when cfg implements Validator.
//
//	type Config struct {
//	    Port    int      `env:"HTTP_PORT" envDefault:"8080"`
//	    Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
