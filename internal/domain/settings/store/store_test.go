package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/platform/storage"
)

func sampleSettings() settings.Settings {
	return settings.Settings{
		Model:               "yolo11s-pose",
		Device:              "cpu",
		Confidence:          0.6,
		IOUThreshold:        0.5,
		MaxDetections:       10,
		Verbose:             true,
		ClassAgnosticNMS:    false,
		HalfPrecision:       false,
		UseAlternateBackend: true,
	}
}

func newTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := storage.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.CloseDB(db) })
	return db
}

func assertRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty store should report no snapshot")

	want := sampleSettings()
	require.NoError(t, s.Save(ctx, want))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	want.Confidence = 0.3
	want.Model = "yolo11n-pose"
	require.NoError(t, s.Save(ctx, want))

	got, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMemoryStore(t *testing.T) {
	s, err := New(Config{}, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())
	assertRoundTrip(t, s)
	assert.NoError(t, s.Close(context.Background()))
}

func TestSQLiteStore(t *testing.T) {
	db := newTestSQLiteDB(t)
	s, err := New(Config{Driver: DriverSQLite}, Dependencies{SQLiteDB: db})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, s.Driver())
	assertRoundTrip(t, s)

	rev, err := s.(*sqliteStore).Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rev)

	var count int64
	require.NoError(t, db.Model(&storage.SettingsSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSQLiteStore_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)

	a, err := NewSQLite(db, Config{Name: "a"})
	require.NoError(t, err)
	b, err := NewSQLite(db, Config{Name: "b"})
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, sampleSettings()))
	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := New(Config{
		Driver: DriverRedis,
		Redis:  &RedisConfig{Addr: mr.Addr(), Prefix: "test"},
	}, Dependencies{})
	require.NoError(t, err)
	defer s.Close(context.Background())

	assert.Equal(t, DriverRedis, s.Driver())
	assertRoundTrip(t, s)
	assert.True(t, mr.Exists("test:settings:default"))
	assert.Zero(t, mr.TTL("test:settings:default"))
}

func TestRedisStore_CorruptSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("posestream:settings:default", "{not json"))

	s, err := NewRedis(Config{Redis: &RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	defer s.Close(context.Background())

	_, ok, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Driver: DriverSQLite}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: DriverRedis}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: DriverRedis, Redis: &RedisConfig{}}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: "etcd"}, Dependencies{})
	assert.Error(t, err)
}

func TestNew_DriverNameIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{DriverMemory, DriverRedis, DriverSQLite}, Drivers())

	s, err := New(Config{Driver: " Memory "}, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())
}
