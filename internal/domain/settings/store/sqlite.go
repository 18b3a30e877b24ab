package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db   *gorm.DB
	name string
}

// NewSQLite stores the snapshot as a JSON row in settings_snapshots.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires db handle")
	}
	return &sqliteStore{db: db, name: snapshotName(cfg)}, nil
}

func (s *sqliteStore) Driver() string { return DriverSQLite }

func (s *sqliteStore) Load(ctx context.Context) (settings.Settings, bool, error) {
	var row storage.SettingsSnapshot
	err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return settings.Settings{}, false, nil
	}
	if err != nil {
		return settings.Settings{}, false, err
	}

	var snapshot settings.Settings
	if err := sonic.Unmarshal(row.Data, &snapshot); err != nil {
		return settings.Settings{}, false, fmt.Errorf("decode settings snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, snapshot settings.Settings) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return err
	}
	row := storage.SettingsSnapshot{Name: s.name, Data: data, Revision: 1}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"data":       gorm.Expr("excluded.data"),
			"revision":   gorm.Expr("settings_snapshots.revision + 1"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error
}

// Revision reports how many times the snapshot has been written.
func (s *sqliteStore) Revision(ctx context.Context) (int, error) {
	var row storage.SettingsSnapshot
	if err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&row).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Revision, nil
}

func (s *sqliteStore) Close(context.Context) error { return nil }
