package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds process settings read from MEMORY_GAME_* variables.
// CLI flags override these values.
type ServerConfig struct {
	Host            string        `env:"MEMORY_GAME_HOST"             envDefault:"localhost"`
	Port            int           `env:"MEMORY_GAME_PORT"             envDefault:"8080"`
	ConfigDir       string        `env:"MEMORY_GAME_CONFIG_DIR"       envDefault:"configs"`
	SessionsDir     string        `env:"MEMORY_GAME_SESSIONS_DIR"     envDefault:"sessions"`
	ScoresBackend   string        `env:"MEMORY_GAME_SCORES_BACKEND"   envDefault:"file"`
	ScoresPath      string        `env:"MEMORY_GAME_SCORES_PATH"      envDefault:"data/best_scores.json"`
	SessionMaxAge   time.Duration `env:"MEMORY_GAME_SESSION_MAX_AGE"  envDefault:"24h"`
	CleanupInterval time.Duration `env:"MEMORY_GAME_CLEANUP_INTERVAL" envDefault:"1h"`
	SyncInterval    time.Duration `env:"MEMORY_GAME_SYNC_INTERVAL"    envDefault:"30s"`
	OTelEndpoint    string        `env:"MEMORY_GAME_OTEL_ENDPOINT"`
	NgrokAuthToken  string        `env:"NGROK_AUTHTOKEN"`
	NgrokDomain     string        `env:"MEMORY_GAME_NGROK_DOMAIN"`
}

// ParseEnv loads ServerConfig from the environment.
func ParseEnv() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks the settings for usable values.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	switch strings.ToLower(c.ScoresBackend) {
	case "", "memory", "file", "sqlite":
	default:
		return fmt.Errorf("scores backend must be memory, file or sqlite, got %q", c.ScoresBackend)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be positive, got %s", c.SessionMaxAge)
	}
	return nil
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
