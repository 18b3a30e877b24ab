package bootstrap

import (
	"context"
	"strings"

	"pose-stream-server-go/internal/app/services"
	"pose-stream-server-go/internal/domain/eventbus"
	domainimage "pose-stream-server-go/internal/domain/image"
	"pose-stream-server-go/internal/domain/inference"
	"pose-stream-server-go/internal/domain/inference/onnx"
	"pose-stream-server-go/internal/domain/registry"
	"pose-stream-server-go/internal/domain/settings"
	settingsstore "pose-stream-server-go/internal/domain/settings/store"
	"pose-stream-server-go/internal/domain/telemetry"
	platformconfig "pose-stream-server-go/internal/platform/config"
	platformerrors "pose-stream-server-go/internal/platform/errors"
	platformlogging "pose-stream-server-go/internal/platform/logging"
	platformobservability "pose-stream-server-go/internal/platform/observability"
	platformstorage "pose-stream-server-go/internal/platform/storage"
	"pose-stream-server-go/internal/transport/ws"
	"pose-stream-server-go/internal/utils"
)

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}

	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}

	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag(logTag, "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "observability:setup-hooks", "config/logger not initialised")
	}

	cfg := platformobservability.Config{
		Enabled:   state.config.Observability.Enabled || strings.EqualFold(state.config.Log.Level, "debug"),
		Namespace: state.config.Observability.Namespace,
	}

	reg, metrics, shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.metricsRegistry = reg
	state.metrics = metrics
	state.observabilityShutdown = shutdown
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(0, 0, state.logger)
	bus.Start()
	state.bus = bus

	if err := eventbus.NewLogHandler(state.logger).Register(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to register event log handler", err)
	}
	return nil
}

func initSettingsStorageStep(ctx context.Context, state *appState) error {
	cfg := state.config.SettingsStore
	driver := strings.ToLower(cfg.Driver)

	storeCfg := settingsstore.Config{Driver: driver, Name: cfg.Name}
	var deps settingsstore.Dependencies

	switch driver {
	case settingsstore.DriverSQLite:
		db, err := platformstorage.OpenSQLite(ctx, cfg.SQLite.DSN)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-settings-store", "failed to open settings database", err)
		}
		state.db = db
		deps.SQLiteDB = db
		storeCfg.SQLite = &settingsstore.SQLiteConfig{DSN: cfg.SQLite.DSN}
	case settingsstore.DriverRedis:
		storeCfg.Redis = &settingsstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	}

	snapshots, err := settingsstore.New(storeCfg, deps)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-settings-store", "failed to create settings store", err)
	}
	state.snapshots = snapshots
	state.logger.InfoTag("Storage", "settings snapshots use the %s driver", snapshots.Driver())
	return nil
}

func initRegistryStep(_ context.Context, state *appState) error {
	reg := registry.New(registry.Config{
		ModelsDir: state.config.Inference.ModelsDir,
		ModelExt:  state.config.Inference.ModelExt,
	}, registry.NewSystemProber(), state.logger)
	state.registry = reg

	state.logger.InfoTag("Registry", "devices=%d downloaded models=%v recommended=%s/%s",
		len(reg.Devices()), reg.DownloadedModels(), reg.RecommendedModel(), reg.RecommendedDevice())
	return nil
}

func initSettingsStep(ctx context.Context, state *appState) error {
	state.settings = settings.New(ctx, settings.Options{
		Registry:  state.registry,
		Persister: state.snapshots,
		Publisher: state.bus,
		Logger:    state.logger,
		Metrics:   state.metrics,
	})
	return nil
}

func initInferenceStep(ctx context.Context, state *appState) error {
	infCfg := state.config.Inference
	limits := domainimage.Limits{
		MaxFileSize:    infCfg.Image.MaxFileSize,
		MaxPixels:      infCfg.Image.MaxPixels,
		MaxWidth:       infCfg.Image.MaxWidth,
		MaxHeight:      infCfg.Image.MaxHeight,
		AllowedFormats: infCfg.Image.AllowedFormats,
		EnableDeepScan: infCfg.Image.DeepScan,
	}
	state.pipeline = domainimage.NewPipeline(domainimage.Options{Limits: limits, Logger: state.logger})

	factory, shutdown := engineFactory(infCfg, state.logger)
	state.engineShutdown = shutdown

	state.session = inference.NewSession(inference.Options{
		Factory:   factory,
		Decoder:   state.pipeline,
		Settings:  state.settings,
		ModelPath: state.registry.ModelPath,
		Logger:    state.logger,
		Metrics:   state.metrics,
	})
	state.settings.SetRebuilder(state.session)

	if strings.EqualFold(infCfg.Backend, "none") {
		state.logger.WarnTag("Inference", "inference backend disabled; detections will fail until a backend is configured")
		return nil
	}

	if err := state.session.Rebuild(ctx, state.settings.EngineSpec()); err != nil {
		state.logger.ErrorTag("Inference", "initial engine build failed, serving without a model: %v", err)
	}
	return nil
}

func engineFactory(cfg platformconfig.InferenceConfig, logger *utils.Logger) (inference.EngineFactory, func() error) {
	if strings.EqualFold(cfg.Backend, "none") {
		return inference.EngineFactoryFunc(func(context.Context, inference.EngineConfig) (inference.Engine, error) {
			return nil, platformerrors.New(platformerrors.KindEngine, "inference.factory", "inference backend is disabled")
		}), nil
	}

	return onnx.NewFactory(onnx.Config{
		SharedLibrary:   cfg.ONNXLibrary,
		InputSize:       cfg.InputSize,
		DownloadURL:     cfg.DownloadURL,
		DownloadTimeout: cfg.DownloadTimeout,
	}, logger), onnx.Shutdown
}

func initTelemetryStep(_ context.Context, state *appState) error {
	state.telemetry = telemetry.NewAggregator(telemetry.Options{
		Window:     state.config.Telemetry.Window,
		BufferSize: state.config.Telemetry.BufferSize,
		Logger:     state.logger,
		Metrics:    state.metrics,
	})
	return nil
}

func initWebSocketStep(_ context.Context, state *appState) error {
	wsCfg := state.config.Transport.WebSocket

	state.hub = ws.NewHub(state.logger, ws.HubOptions{Publisher: state.bus, Metrics: state.metrics})
	state.wsRouter = ws.NewRouter(state.hub, state.logger, ws.RouterOptions{
		HandshakeTimeout: wsCfg.HandshakeTimeout,
		MaxMessageBytes:  wsCfg.MaxMessageBytes,
	})
	state.stream = services.NewStreamService(services.StreamOptions{
		Detector:    state.session,
		Recorder:    state.telemetry,
		Logger:      state.logger,
		IdleTimeout: wsCfg.IdleTimeout,
	})
	state.wsRouter.SetHandlerBuilder(state.stream.BuildHandler)

	if wsCfg.BroadcastSettings {
		if err := state.hub.BroadcastSettings(state.bus); err != nil {
			return platformerrors.Wrap(platformerrors.KindTransport, "transport:init-websocket", "failed to subscribe settings broadcast", err)
		}
	}
	return nil
}
