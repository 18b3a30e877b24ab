package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"pose-stream-server-go/internal/platform/errors"
)

// Migration is one versioned schema change. Versions sort lexically.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
	Down        func(tx *gorm.DB) error
}

// AppliedMigration 已执行的迁移记录
type AppliedMigration struct {
	ID          uint      `gorm:"primaryKey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

// Migrator applies and reverts migrations, each inside its own transaction.
type Migrator struct {
	db  *gorm.DB
	set []Migration
}

func NewMigrator(db *gorm.DB, set ...Migration) *Migrator {
	sorted := slices.Clone(set)
	slices.SortFunc(sorted, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return &Migrator{db: db, set: sorted}
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&AppliedMigration{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate.bookkeeping", "create schema_migrations", err)
	}
	var versions []string
	if err := db.Model(&AppliedMigration{}).Pluck("version", &versions).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate.bookkeeping", "list applied migrations", err)
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

// Apply runs every migration not yet recorded, in version order, and returns
// the versions it ran. It stops at the first failure.
func (m *Migrator) Apply(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, mig := range m.set {
		if done[mig.Version] {
			continue
		}
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&AppliedMigration{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return ran, errors.Wrap(errors.KindStorage, "migrate.up", "apply "+mig.Version, err)
		}
		ran = append(ran, mig.Version)
	}
	return ran, nil
}

// Rollback reverts one applied migration and forgets it.
func (m *Migrator) Rollback(ctx context.Context, version string) error {
	i := slices.IndexFunc(m.set, func(mig Migration) bool { return mig.Version == version })
	if i < 0 {
		return errors.New(errors.KindStorage, "migrate.down", fmt.Sprintf("unknown migration %s", version))
	}
	mig := m.set[i]

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec AppliedMigration
		err := tx.Where("version = ?", version).First(&rec).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			return errors.New(errors.KindStorage, "migrate.down", fmt.Sprintf("migration %s not applied", version))
		case err != nil:
			return errors.Wrap(errors.KindStorage, "migrate.down", "look up "+version, err)
		}
		if mig.Down == nil {
			return errors.New(errors.KindStorage, "migrate.down", fmt.Sprintf("migration %s is irreversible", version))
		}
		if err := mig.Down(tx); err != nil {
			return errors.Wrap(errors.KindStorage, "migrate.down", "revert "+version, err)
		}
		return tx.Delete(&rec).Error
	})
}

// History lists applied migrations, newest first.
func (m *Migrator) History(ctx context.Context) ([]AppliedMigration, error) {
	var recs []AppliedMigration
	if err := m.db.WithContext(ctx).Order("applied_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate.history", "list applied migrations", err)
	}
	return recs, nil
}
