// Package migrations holds the schema history of the settings database.
package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// settingsSnapshotV1 freezes the table shape as first created; later
// migrations add their own structs instead of editing this one.
type settingsSnapshotV1 struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"size:64;uniqueIndex:idx_settings_snapshots_name;not null"`
	Data      datatypes.JSON `gorm:"not null"`
	Revision  int            `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (settingsSnapshotV1) TableName() string { return "settings_snapshots" }

const SettingsSnapshotsVersion = "001_settings_snapshots"

func SettingsSnapshotsUp(tx *gorm.DB) error {
	return tx.Migrator().CreateTable(&settingsSnapshotV1{})
}

func SettingsSnapshotsDown(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&settingsSnapshotV1{})
}
