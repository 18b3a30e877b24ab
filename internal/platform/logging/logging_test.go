package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "debug", Dir: dir, Filename: "server.log"})
	require.NoError(t, err)
	defer logger.Close()

	assert.NotNil(t, logger.Legacy())
	assert.NotNil(t, logger.Slog())

	logger.Legacy().InfoTag("Bootstrap", "hello")
	content, err := os.ReadFile(filepath.Join(dir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[Bootstrap] hello")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Dir: "  "}.withDefaults()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, filepath.Join("logs", "server.log"), Config{}.Path())
}

func TestClose_Nil(t *testing.T) {
	var logger *Logger
	assert.NoError(t, logger.Close())
}
