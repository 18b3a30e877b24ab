// Package logging owns the process log provider: one file-backed tagged
// logger plus its slog view.
package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"pose-stream-server-go/internal/utils"
)

const (
	defaultLevel    = "info"
	defaultDir      = "logs"
	defaultFilename = "server.log"
)

// Config captures logging configuration options. Zero fields fall back to
// info level and logs/server.log.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = defaultLevel
	}
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = defaultDir
	}
	if strings.TrimSpace(c.Filename) == "" {
		c.Filename = defaultFilename
	}
	return c
}

// Path is the active log file location.
func (c Config) Path() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.Filename)
}

// Logger 同时提供带标签的日志和 slog 接口
type Logger struct {
	cfg    Config
	tagged *utils.Logger
}

func New(cfg Config) (*Logger, error) {
	cfg = cfg.withDefaults()
	tagged, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger %s: %w", cfg.Path(), err)
	}
	return &Logger{cfg: cfg, tagged: tagged}, nil
}

// Legacy returns the tagged logger the domain packages take.
func (l *Logger) Legacy() *utils.Logger {
	return l.tagged
}

func (l *Logger) Slog() *slog.Logger {
	return l.tagged.Slog()
}

// Config returns the effective configuration after defaults.
func (l *Logger) Config() Config {
	return l.cfg
}

func (l *Logger) Close() error {
	if l == nil || l.tagged == nil {
		return nil
	}
	return l.tagged.Close()
}
