package config

import (
	"errors"
	"io/fs"

	"bridgeflow-backend/internal/broadcaster"
	"bridgeflow-backend/internal/database"
	"bridgeflow-backend/internal/pipeline"
	"bridgeflow-backend/internal/prices"
	"bridgeflow-backend/internal/scheduler"
	"bridgeflow-backend/internal/server"
	"bridgeflow-backend/internal/tokens"
	"bridgeflow-backend/internal/utils"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log         utils.LogConfig    `json:"log"`
	Server      server.Config      `json:"server"`
	Database    database.Config    `json:"database"`
	Prices      prices.Config      `json:"prices"`
	Tokens      tokens.Config      `json:"tokens"`
	Pipeline    pipeline.Config    `json:"pipeline"`
	Scheduler   scheduler.Config   `json:"scheduler"`
	Broadcaster broadcaster.Config `json:"broadcaster"`
}

// DefaultConfig returns the configuration of the entire application from the environment
func DefaultConfig() Config {
	return Config{
		Log:         utils.DefaultLogConfig(),
		Server:      server.DefaultConfig(),
		Database:    database.DefaultConfig(),
		Prices:      prices.DefaultConfig(),
		Tokens:      tokens.DefaultConfig(),
		Pipeline:    pipeline.DefaultConfig(),
		Scheduler:   scheduler.DefaultConfig(),
		Broadcaster: broadcaster.DefaultConfig(),
	}
}

// Load reads the optional env files into the environment, then builds and validates the configuration.
// Variables already set in the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, utils.WrapError(err, utils.ErrorTypeConfig, "BAD_ENV_FILE", "failed to read env file", "config").
				WithContext("file", f)
		}
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late
func (c Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return utils.WrapError(err, utils.ErrorTypeConfig, "BAD_DATABASE_CONFIG", "invalid database configuration", "config")
	}
	if c.Prices.BaseURL == "" {
		return utils.NewAppError(utils.ErrorTypeConfig, "BAD_PRICES_CONFIG", "PRICES_URL is required", "config")
	}
	if c.Tokens.File == "" {
		return utils.NewAppError(utils.ErrorTypeConfig, "BAD_TOKENS_CONFIG", "TOKENS_FILE is required", "config")
	}
	return nil
}
