package observability

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config captures observability toggles.
type Config struct {
	// Enabled turns on span and metric debug logging. Prometheus collection
	// runs regardless.
	Enabled   bool
	Namespace string
}

// ShutdownFunc detaches the hooks installed by Setup.
type ShutdownFunc func(context.Context) error

type hooks struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
}

var installed atomic.Pointer[hooks]

func current() *hooks {
	if h := installed.Load(); h != nil {
		return h
	}
	return &hooks{}
}

// Setup builds a registry holding the Go runtime, process and service
// collectors, and installs the package-level span and metric hooks.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*prometheus.Registry, *Metrics, ShutdownFunc, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := NewMetrics(registry, cfg.Namespace)
	if err != nil {
		return nil, nil, nil, err
	}

	installed.Store(&hooks{cfg: cfg, logger: logger, metrics: metrics})
	if logger != nil {
		logger.InfoContext(ctx, "[OBSERVABILITY] hooks installed", slog.Bool("span_logging", cfg.Enabled))
	}

	shutdown := func(context.Context) error {
		installed.Store(nil)
		return nil
	}
	return registry, metrics, shutdown, nil
}
