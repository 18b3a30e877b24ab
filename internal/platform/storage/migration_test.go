package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	platformerrors "pose-stream-server-go/internal/platform/errors"
)

func memoryDSN() string {
	return fmt.Sprintf("file:storage-%d?mode=memory&cache=shared", time.Now().UnixNano())
}

func TestOpenSQLite_RunsMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, memoryDSN())
	require.NoError(t, err)
	defer CloseDB(db)

	assert.True(t, db.Migrator().HasTable("settings_snapshots"))

	history, err := NewMigrator(db).History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "001_settings_snapshots", history[0].Version)
}

func TestOpenSQLite_FileCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "settings.db")
	db, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, CloseDB(db))

	// reopening is idempotent
	db, err = OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, CloseDB(db))

	_, err = OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, memoryDSN())
	require.NoError(t, err)
	defer CloseDB(db)

	ran, err := NewMigrator(db, Migrations()...).Apply(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, memoryDSN())
	require.NoError(t, err)
	defer CloseDB(db)

	m := NewMigrator(db, Migrations()...)
	require.NoError(t, m.Rollback(ctx, "001_settings_snapshots"))
	assert.False(t, db.Migrator().HasTable("settings_snapshots"))

	err = m.Rollback(ctx, "001_settings_snapshots")
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))

	err = m.Rollback(ctx, "999_unknown")
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))

	ran, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_settings_snapshots"}, ran)
}

var failingMigration = Migration{
	Version:     "000_fail",
	Description: "always fails",
	Up:          func(*gorm.DB) error { return fmt.Errorf("boom") },
}

func TestMigrator_FailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, memoryDSN())
	require.NoError(t, err)
	defer CloseDB(db)

	_, err = NewMigrator(db, failingMigration).Apply(ctx)
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
}

func TestMigrator_IrreversibleAndOrdering(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, memoryDSN())
	require.NoError(t, err)
	defer CloseDB(db)

	var order []string
	step := func(v string) Migration {
		return Migration{Version: v, Description: v, Up: func(*gorm.DB) error {
			order = append(order, v)
			return nil
		}}
	}

	m := NewMigrator(db, step("003_c"), step("002_b"))
	ran, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_b", "003_c"}, ran)
	assert.Equal(t, ran, order)

	err = m.Rollback(ctx, "002_b")
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
}
