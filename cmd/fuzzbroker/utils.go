package main

import (
	"fmt"
	"os"

	"github.com/jihwankim/fuzzbroker/pkg/config"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
)

// loadConfig loads the configuration file named by the persistent --config
// flag, falling back to config.DefaultConfig() when it does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the component logger for cfg, honoring --verbose.
func newLogger(cfg *config.Config, component string) *logging.Logger {
	level := logging.Level(cfg.Framework.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:     level,
		Format:    logging.Format(cfg.Framework.LogFormat),
		Output:    os.Stdout,
		Component: component,
	})
}
