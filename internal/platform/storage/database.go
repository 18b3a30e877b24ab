package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pose-stream-server-go/internal/platform/storage/migrations"
)

// SettingsSnapshot is the persisted inference settings document.
type SettingsSnapshot struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	Revision  int            `gorm:"not null;default:1" json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (SettingsSnapshot) TableName() string {
	return "settings_snapshots"
}

// Migrations lists every schema change of the settings database.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     migrations.SettingsSnapshotsVersion,
			Description: "create settings_snapshots",
			Up:          migrations.SettingsSnapshotsUp,
			Down:        migrations.SettingsSnapshotsDown,
		},
	}
}

// OpenSQLite opens (creating its directory if needed) the database at dsn and
// applies pending migrations.
func OpenSQLite(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := NewMigrator(db, Migrations()...).Apply(ctx); err != nil {
		_ = CloseDB(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// CloseDB releases the connection pool behind db.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
