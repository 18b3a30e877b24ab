package store

import (
	"context"

	"pose-stream-server-go/internal/domain/settings"
)

// Store persists the applied settings snapshot for a single server instance.
type Store interface {
	settings.Persister
	Driver() string
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	// Name identifies the snapshot; instances sharing a backend use distinct names.
	Name   string
	Redis  *RedisConfig
	SQLite *SQLiteConfig
}

// SQLiteConfig provides the database location.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

const defaultSnapshotName = "default"

func snapshotName(cfg Config) string {
	if cfg.Name == "" {
		return defaultSnapshotName
	}
	return cfg.Name
}
