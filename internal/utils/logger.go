package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogRetentionDays bounds how long rotated log files are kept.
const LogRetentionDays = 7

// DefaultLogger is the first logger created in the process.
var DefaultLogger *Logger

type LogCfg struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogDir   string `yaml:"log_dir" json:"log_dir"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// Logger writes every record twice: JSON to a daily-rotated file and a
// colored single line to the console.
type Logger struct {
	level   *slog.LevelVar
	file    *dailyFile
	console *consoleHandler
	slog    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ParseLevel maps a config level name to slog; unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建新的日志记录器
func NewLogger(config *LogCfg) (*Logger, error) {
	return newLogger(config, os.Stdout)
}

func newLogger(config *LogCfg, console io.Writer) (*Logger, error) {
	if config == nil {
		return nil, errors.New("log config is required")
	}

	file, err := openDailyFile(config.LogDir, config.LogFile, time.Now)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(ParseLevel(config.LogLevel))

	l := &Logger{
		level:   level,
		file:    file,
		console: &consoleHandler{out: console, level: level, mu: new(sync.Mutex)},
	}
	l.slog = slog.New(fanout{
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
		l.console,
	})
	file.onError = func(msg string, err error) {
		_ = l.console.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, msg+": "+err.Error(), 0))
	}

	if DefaultLogger == nil {
		DefaultLogger = l
	}
	return l, nil
}

// SetLevel changes the minimum level of both outputs.
func (l *Logger) SetLevel(name string) {
	l.level.Set(ParseLevel(name))
}

func (l *Logger) cleanOldLogs() {
	l.file.mu.Lock()
	defer l.file.mu.Unlock()
	l.file.prune()
}

// Close flushes nothing and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.file.Close()
	})
	return l.closeErr
}

// emit formats msg with args when it carries verbs; otherwise a single map
// argument becomes sorted attributes.
func (l *Logger) emit(level slog.Level, msg string, args ...interface{}) {
	if !l.slog.Enabled(context.Background(), level) {
		return
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		l.slog.LogAttrs(context.Background(), level, fmt.Sprintf(msg, args...))
		return
	}
	l.slog.LogAttrs(context.Background(), level, msg, fieldAttrs(args)...)
}

func fieldAttrs(args []interface{}) []slog.Attr {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	fields, ok := args[0].(map[string]interface{})
	if !ok {
		return []slog.Attr{slog.Any("fields", args[0])}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// Debug 记录调试级别日志
func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(slog.LevelDebug, msg, args...) }

// Info 记录信息级别日志
func (l *Logger) Info(msg string, args ...interface{}) { l.emit(slog.LevelInfo, msg, args...) }

func (l *Logger) Warn(msg string, args ...interface{}) { l.emit(slog.LevelWarn, msg, args...) }

func (l *Logger) Error(msg string, args ...interface{}) { l.emit(slog.LevelError, msg, args...) }

// FormatLog prefixes message with a single tag: FormatLog("Bootstrap", "ready") -> "[Bootstrap] ready".
// Messages that already start with "[" are returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return "[" + tag + "] " + message
}

// DebugTag 记录带分类标签的调试日志
func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	if l != nil {
		l.emit(slog.LevelDebug, FormatLog(tag, msg), args...)
	}
}

// InfoTag 记录带分类标签的信息日志
func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	if l != nil {
		l.emit(slog.LevelInfo, FormatLog(tag, msg), args...)
	}
}

// WarnTag 记录带分类标签的警告日志
func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	if l != nil {
		l.emit(slog.LevelWarn, FormatLog(tag, msg), args...)
	}
}

// ErrorTag 记录带分类标签的错误日志
func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	if l != nil {
		l.emit(slog.LevelError, FormatLog(tag, msg), args...)
	}
}

// Slog exposes a slog.Logger writing to both outputs.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}
