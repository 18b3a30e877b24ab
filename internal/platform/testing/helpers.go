// Package testing holds fixtures shared by package tests.
package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pose-stream-server-go/internal/platform/config"
	"pose-stream-server-go/internal/platform/logging"
	"pose-stream-server-go/internal/utils"
)

// SetupTestConfig returns defaults tuned for tests: loopback, fast idle timeout,
// logs and models under the test's temp dirs and the in-memory settings driver.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	cfg.Web.Port = 18080
	cfg.Transport.WebSocket.IP = "127.0.0.1"
	cfg.Transport.WebSocket.Port = 18080
	cfg.Transport.WebSocket.IdleTimeout = 200 * time.Millisecond
	cfg.Inference.ModelsDir = t.TempDir()
	cfg.SettingsStore.Driver = "memory"
	return cfg
}

// SetupTestLogger builds a debug logger writing under a temp dir and closes it
// on cleanup.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{Level: "debug", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func SetupUtilsLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return SetupTestLogger(t).Legacy()
}

// WriteModel drops a zero-filled <id>.onnx of size bytes into dir.
func WriteModel(t *testing.T, dir, id string, size int) string {
	t.Helper()
	path := filepath.Join(dir, id+".onnx")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write model %s: %v", id, err)
	}
	return path
}

// ModelsDir returns a temp directory holding a 1 KiB file per model id.
func ModelsDir(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		WriteModel(t, dir, id, 1024)
	}
	return dir
}
