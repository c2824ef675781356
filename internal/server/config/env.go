package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays values from environment variables onto the config.
// Only fields with an env tag participate; unset variables keep the
// current value.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
