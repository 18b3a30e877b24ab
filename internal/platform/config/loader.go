package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "pose-stream-server-go/internal/platform/errors"
)

// DefaultPath is read when neither WithPath nor POSE_CONFIG is set.
const DefaultPath = "config.yaml"

// Loader reads YAML over DefaultConfig and applies POSE_* environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that reads config.yaml (or $POSE_CONFIG) and .env.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration. A missing file is not an error: defaults
// and environment overrides still apply and Result.Path is empty.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.dotenv", "load .env", err)
		}
	}

	cfg := DefaultConfig()
	path := l.resolvePath()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.parse", "parse "+path, err)
		}
	case os.IsNotExist(err):
		path = ""
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.read", "read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if v, ok := l.lookupEnv("POSE_CONFIG"); ok && v != "" {
		return v
	}
	return DefaultPath
}

func (l *Loader) applyEnv(cfg *Config) error {
	var firstErr error
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = platformerrors.Wrap(platformerrors.KindConfig, "config.env", key, err)
				}
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				if firstErr == nil {
					firstErr = platformerrors.Wrap(platformerrors.KindConfig, "config.env", key, err)
				}
				return
			}
			*dst = d
		}
	}

	str("POSE_LOG_LEVEL", &cfg.Log.Level)
	str("POSE_LOG_DIR", &cfg.Log.Dir)
	num("POSE_WEB_PORT", &cfg.Web.Port)
	num("POSE_WS_PORT", &cfg.Transport.WebSocket.Port)
	str("POSE_WS_PATH", &cfg.Transport.WebSocket.Path)
	dur("POSE_WS_IDLE_TIMEOUT", &cfg.Transport.WebSocket.IdleTimeout)
	str("POSE_MODELS_DIR", &cfg.Inference.ModelsDir)
	str("POSE_ONNX_LIBRARY", &cfg.Inference.ONNXLibrary)
	str("POSE_INFERENCE_BACKEND", &cfg.Inference.Backend)
	str("POSE_SETTINGS_DRIVER", &cfg.SettingsStore.Driver)
	str("POSE_SETTINGS_NAME", &cfg.SettingsStore.Name)
	str("POSE_REDIS_ADDR", &cfg.SettingsStore.Redis.Addr)
	str("POSE_REDIS_PASSWORD", &cfg.SettingsStore.Redis.Password)
	str("POSE_SQLITE_DSN", &cfg.SettingsStore.SQLite.DSN)
	if v, ok := l.lookupEnv("POSE_CORS_ORIGINS"); ok && v != "" {
		cfg.Web.CORSOrigins = splitList(v)
	}
	return firstErr
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks ports, durations and sizes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "config is nil")
	}
	fail := func(format string, args ...interface{}) error {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", fmt.Sprintf(format, args...))
	}

	if cfg.Web.Enabled && !validPort(cfg.Web.Port) {
		return fail("invalid web port %d", cfg.Web.Port)
	}
	ws := cfg.Transport.WebSocket
	if ws.Enabled {
		if !validPort(ws.Port) {
			return fail("invalid websocket port %d", ws.Port)
		}
		if !strings.HasPrefix(ws.Path, "/") {
			return fail("websocket path must start with '/': %q", ws.Path)
		}
		if ws.IdleTimeout <= 0 {
			return fail("websocket idle_timeout must be positive")
		}
		if ws.MaxMessageBytes < 24 {
			return fail("websocket max_message_bytes must hold a frame header")
		}
	}
	switch strings.ToLower(cfg.Inference.Backend) {
	case "onnx", "none":
	default:
		return fail("unsupported inference backend %q", cfg.Inference.Backend)
	}
	if cfg.Inference.InputSize <= 0 || cfg.Inference.InputSize%32 != 0 {
		return fail("inference input_size must be a positive multiple of 32, got %d", cfg.Inference.InputSize)
	}
	if cfg.Telemetry.Window <= 0 {
		return fail("telemetry window must be positive")
	}
	if cfg.Telemetry.BufferSize <= 0 {
		return fail("telemetry buffer_size must be positive")
	}
	switch strings.ToLower(cfg.SettingsStore.Driver) {
	case "", "memory", "sqlite", "redis":
	default:
		return fail("unsupported settings_store driver %q", cfg.SettingsStore.Driver)
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
