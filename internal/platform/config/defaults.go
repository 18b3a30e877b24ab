package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:        true,
			Port:           8000,
			StaticDir:      "",
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 10 << 20,
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				Enabled:           true,
				IP:                "0.0.0.0",
				Port:              8000,
				Path:              "/ws/detect",
				IdleTimeout:       30 * time.Second,
				HandshakeTimeout:  10 * time.Second,
				MaxMessageBytes:   8 << 20,
				BroadcastSettings: true,
			},
		},
		Inference: InferenceConfig{
			Backend:         "onnx",
			ModelsDir:       "models",
			ModelExt:        ".onnx",
			InputSize:       640,
			DownloadTimeout: 5 * time.Minute,
			Image: ImageConfig{
				MaxFileSize:    8 << 20,
				MaxPixels:      4096 * 4096,
				MaxWidth:       4096,
				MaxHeight:      4096,
				AllowedFormats: []string{"jpeg", "png", "webp", "gif", "bmp"},
				DeepScan:       true,
			},
		},
		SettingsStore: SettingsStoreConfig{
			Driver: "memory",
			Name:   "default",
			SQLite: SettingsSQLiteConf{DSN: "data/settings.db"},
			Redis:  SettingsRedisConf{Addr: "127.0.0.1:6379", Prefix: "posestream"},
		},
		Telemetry: TelemetryConfig{
			Window:     60 * time.Second,
			BufferSize: 100,
		},
		Observability: ObservabilityConfig{
			Enabled:   false,
			Namespace: "posestream",
		},
	}
}
