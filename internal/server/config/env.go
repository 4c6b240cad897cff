package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "SECLEDGER_"

// parseEnv overlays SECLEDGER_* environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the process environment win over it. Unset variables leave fields as they
// are. Malformed values panic, like a malformed JSON file does.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		panic(err)
	}
}
