package config

import (
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Web           WebConfig           `yaml:"web" mapstructure:"web"`
	Transport     TransportConfig     `yaml:"transport" mapstructure:"transport"`
	Inference     InferenceConfig     `yaml:"inference" mapstructure:"inference"`
	SettingsStore SettingsStoreConfig `yaml:"settings_store" mapstructure:"settings_store"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" mapstructure:"telemetry"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" mapstructure:"ip"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	Enabled     bool     `yaml:"enabled" mapstructure:"enabled"`
	Port        int      `yaml:"port" mapstructure:"port"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// MaxUploadBytes bounds multipart image uploads on /api/detect and /api/test.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// TransportConfig 传输层配置
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	IP      string `yaml:"ip" mapstructure:"ip"`
	// Port equal to web.port mounts the websocket route on the HTTP router.
	Port              int           `yaml:"port" mapstructure:"port"`
	Path              string        `yaml:"path" mapstructure:"path"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	BroadcastSettings bool          `yaml:"broadcast_settings" mapstructure:"broadcast_settings"`
}

// InferenceConfig selects the engine backend and where model files live.
type InferenceConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	ModelsDir   string `yaml:"models_dir" mapstructure:"models_dir"`
	ModelExt    string `yaml:"model_ext" mapstructure:"model_ext"`
	ONNXLibrary string `yaml:"onnx_library" mapstructure:"onnx_library"`
	InputSize   int    `yaml:"input_size" mapstructure:"input_size"`
	// DownloadURL is a template with a single %s for the model file name.
	DownloadURL     string        `yaml:"download_url" mapstructure:"download_url"`
	DownloadTimeout time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`
	Image           ImageConfig   `yaml:"image" mapstructure:"image"`
}

type ImageConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels" mapstructure:"max_pixels"`
	MaxWidth       int      `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight      int      `yaml:"max_height" mapstructure:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats" mapstructure:"allowed_formats"`
	// DeepScan rejects known non-image prefixes and uploads whose bytes
	// contradict their declared content type.
	DeepScan       bool     `yaml:"deep_scan" mapstructure:"deep_scan"`
}

type SettingsStoreConfig struct {
	Driver string             `yaml:"driver" mapstructure:"driver"`
	// Name keys the snapshot, so instances sharing one database or redis keep separate settings.
	Name   string             `yaml:"name" mapstructure:"name"`
	SQLite SettingsSQLiteConf `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Redis  SettingsRedisConf  `yaml:"redis,omitempty" mapstructure:"redis"`
}

type SettingsSQLiteConf struct {
	DSN string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

type SettingsRedisConf struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

type TelemetryConfig struct {
	Window     time.Duration `yaml:"window" mapstructure:"window"`
	BufferSize int           `yaml:"buffer_size" mapstructure:"buffer_size"`
}

type ObservabilityConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}
