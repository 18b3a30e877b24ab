package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "test.log",
	})

	assert.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestLogger_WritesJSONFile(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "info",
		LogDir:   tmpDir,
		LogFile:  "info.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("frame window closed", map[string]interface{}{"frames": 12})
	logger.Warn("model %s missing", "yolo11n-pose")

	content, err := os.ReadFile(filepath.Join(tmpDir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "frame window closed")
	assert.Contains(t, string(content), `"frames":12`)
	assert.Contains(t, string(content), "model yolo11n-pose missing")
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "warn",
		LogDir:   tmpDir,
		LogFile:  "warn.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Error("visible error")

	content, err := os.ReadFile(filepath.Join(tmpDir, "warn.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden debug")
	assert.NotContains(t, string(content), "hidden info")
	assert.Contains(t, string(content), "visible error")
}

func TestLogger_TagConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   t.TempDir(),
		LogFile:  "tag.log",
	}, &buf)
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTag("Inference", "engine ready")

	assert.Contains(t, buf.String(), "[Inference] engine ready")
	assert.Contains(t, buf.String(), "[INFO]")
}

func TestLogger_NilTagHelpers(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.InfoTag("Bootstrap", "noop")
		logger.ErrorTag("Bootstrap", "noop")
	})
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[Settings] updated", FormatLog("Settings", "updated"))
	assert.Equal(t, "plain", FormatLog("", "plain"))
	assert.Equal(t, "[HTTP] already", FormatLog("Settings", "[HTTP] already"))
}

func TestLogger_CleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewLogger(&LogCfg{
		LogLevel: "info",
		LogDir:   tmpDir,
		LogFile:  "server.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	old := time.Now().AddDate(0, 0, -(LogRetentionDays + 3)).Format("2006-01-02")
	recent := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	oldPath := filepath.Join(tmpDir, "server-"+old+".log")
	recentPath := filepath.Join(tmpDir, "server-"+recent+".log")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(recentPath, []byte("x"), 0o644))

	logger.cleanOldLogs()

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentPath)
	assert.NoError(t, err)
}
