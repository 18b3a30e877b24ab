// Package bootstrap wires configuration, domain services and transports and
// owns the process lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"pose-stream-server-go/internal/app/services"
	"pose-stream-server-go/internal/domain/eventbus"
	domainimage "pose-stream-server-go/internal/domain/image"
	"pose-stream-server-go/internal/domain/inference"
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

const logTag = "Bootstrap"

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader     *platformconfig.Loader
	config     *platformconfig.Config
	configPath string

	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	metricsRegistry       *prometheus.Registry
	metrics               *platformobservability.Metrics
	observabilityShutdown platformobservability.ShutdownFunc

	bus       *eventbus.AsyncEventBus
	db        *gorm.DB
	snapshots settingsstore.Store
	registry  *registry.Registry
	settings  *settings.Store
	pipeline  *domainimage.Pipeline
	session   *inference.Session
	// engineShutdown tears down process-wide runtime state of the engine backend.
	engineShutdown func() error
	telemetry      *telemetry.Aggregator

	hub      *ws.Hub
	wsRouter *ws.Router
	stream   *services.StreamService
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.release()
		return err
	}
	defer state.release()

	logger := state.logger
	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}

	return waitForShutdown(signalCtx, groupCtx, cancel, logger, group, state.config.Server.ShutdownTimeout)
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag(logTag, "init graph (%d steps)", len(steps))
	for i, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag(logTag, "  %d. %s: %s", i+1, step.ID, step.Title)
			continue
		}
		logger.InfoTag(logTag, "  %d. %s: %s (after %v)", i+1, step.ID, step.Title, step.DependsOn)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the init steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks and metrics",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Start event bus",
			DependsOn: []string{"logging:init-provider"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "storage:init-settings-store",
			Title:     "Open settings snapshot store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initSettingsStorageStep,
		},
		{
			ID:        "registry:scan",
			Title:     "Scan devices and downloaded models",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindRegistry,
			Execute:   initRegistryStep,
		},
		{
			ID:    "settings:init-store",
			Title: "Initialise detection settings",
			DependsOn: []string{
				"registry:scan",
				"storage:init-settings-store",
				"eventbus:init",
				"observability:setup-hooks",
			},
			Kind:    platformerrors.KindSettings,
			Execute: initSettingsStep,
		},
		{
			ID:        "inference:init-session",
			Title:     "Build inference session",
			DependsOn: []string{"settings:init-store"},
			Kind:      platformerrors.KindEngine,
			Execute:   initInferenceStep,
		},
		{
			ID:        "telemetry:init-aggregator",
			Title:     "Initialise frame telemetry",
			DependsOn: []string{"observability:setup-hooks"},
			Execute:   initTelemetryStep,
		},
		{
			ID:        "transport:init-websocket",
			Title:     "Initialise websocket transport",
			DependsOn: []string{"inference:init-session", "telemetry:init-aggregator", "eventbus:init"},
			Kind:      platformerrors.KindTransport,
			Execute:   initWebSocketStep,
		},
	}
}

func waitForShutdown(
	signalCtx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
	timeout time.Duration,
) error {
	select {
	case <-signalCtx.Done():
		logger.InfoTag(logTag, "shutdown requested: %v", context.Cause(signalCtx))
	case <-groupCtx.Done():
		logger.WarnTag(logTag, "a server stopped, shutting down: %v", context.Cause(groupCtx))
	}

	cancel()

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(logTag, "error while shutting down: %v", err)
			return err
		}
		logger.InfoTag(logTag, "all servers stopped")
	case <-time.After(timeout):
		logger.ErrorTag(logTag, "shutdown timed out after %s", timeout)
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.shutdown", "shutdown timed out")
	}
	return nil
}

// release closes everything the init steps opened, in reverse order. Safe on
// a partially initialised state.
func (s *appState) release() {
	logger := s.logger

	if s.hub != nil {
		s.hub.CloseAll(ws.ErrSessionShutdown)
	}
	if s.session != nil {
		if err := s.session.Close(); err != nil {
			logger.WarnTag(logTag, "closing inference session: %v", err)
		}
	}
	if s.engineShutdown != nil {
		if err := s.engineShutdown(); err != nil {
			logger.WarnTag(logTag, "engine runtime shutdown: %v", err)
		}
	}
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.snapshots != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.snapshots.Close(closeCtx); err != nil {
			logger.WarnTag(logTag, "closing settings store: %v", err)
		}
		cancel()
	}
	if s.db != nil {
		if err := platformstorage.CloseDB(s.db); err != nil {
			logger.WarnTag(logTag, "closing database: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			logger.WarnTag(logTag, "observability did not shut down cleanly: %v", err)
		}
		cancel()
	}
	if s.logProvider != nil {
		logger.InfoTag(logTag, "bye")
		_ = s.logProvider.Close()
	}
}

// loadConfigAndLogger runs only the config and logging steps.
func loadConfigAndLogger(loader *platformconfig.Loader) (*platformconfig.Config, *utils.Logger, error) {
	state := &appState{loader: loader}
	steps := InitGraph()[:2]

	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}

	return state.config, state.logger, nil
}
