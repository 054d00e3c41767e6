package observability

import (
	"strings"

	"github.com/eventmirror/pretix-bridge/internal/config"
)

// Config holds observability configuration derived from the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "pretix-bridge"
	}

	return Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		LogLevel:    strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
		LogFormat:   strings.ToLower(strings.TrimSpace(cfg.LogFormat)),
	}
}

func (c Config) Debug() bool {
	return c.Environment == "development" || c.LogLevel == "debug"
}
