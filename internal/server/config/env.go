package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays LEAFLINE_* variables from environ ("KEY=value" pairs).
// Unset variables leave the current value untouched.
func parseEnv(config *Config, environ []string) error {
	if err := env.ParseWithOptions(config, env.Options{Environment: env.ToMap(environ)}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
