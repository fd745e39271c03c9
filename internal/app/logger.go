package app

import "github.com/nferrante/accesshub/pkg/logger"

// SetupLogger initialises the global logger from the server configuration.
func SetupLogger(cfg *Config) error {
	level := "info"
	if cfg != nil && cfg.Server.LogLevel != "" {
		level = cfg.Server.LogLevel
	}
	return logger.Init(level)
}
