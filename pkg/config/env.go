// Package config loads process configuration from the environment and optional TOML files.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Backend locates the collaboration API.
type Backend struct {
	BaseURL string `env:"ROOMS_BACKEND_URL" envDefault:"http://localhost:8080"`
	Secret  string `env:"ROOMS_SECRET_KEY"`
}

// Server configures cmd/server.
type Server struct {
	Addr           string        `env:"ROOMS_ADDR" envDefault:"localhost:8080"`
	Database       string        `env:"ROOMS_DATABASE" envDefault:"rooms.sqlite3"`
	Secret         string        `env:"ROOMS_SECRET_KEY"`
	BackupInterval time.Duration `env:"ROOMS_BACKUP_INTERVAL" envDefault:"5s"`
	SyncInterval   time.Duration `env:"ROOMS_SYNC_INTERVAL" envDefault:"1s"`
}

// App configures cmd/app.
type App struct {
	Addr     string        `env:"APP_ADDR" envDefault:"localhost:3000"`
	CacheTTL time.Duration `env:"APP_CACHE_TTL" envDefault:"1m"`
	Backend  Backend
}

// Editor configures cmd/editor.
type Editor struct {
	Backend Backend
	Presets string `env:"EDITOR_PRESETS"`
	LogFile string `env:"EDITOR_LOG_FILE" envDefault:"editor.log"`
}
