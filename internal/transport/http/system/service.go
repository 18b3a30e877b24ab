package system

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	_ "pose-stream-server-go/docs"
	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/domain/telemetry"
	"pose-stream-server-go/internal/platform/errors"
	httptransport "pose-stream-server-go/internal/transport/http"
	"pose-stream-server-go/internal/utils"
)

const (
	ServiceName = "pose-stream-server"
	Version     = "1.0.0"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Pose Stream API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// EngineState reports which engine, if any, is loaded.
type EngineState interface {
	Ready() bool
	Loaded() (settings.EngineSpec, bool)
}

type ConnectionCounter interface {
	Count() int
}

type TelemetrySource interface {
	Snapshot() telemetry.Snapshot
}

type SettingsSource interface {
	Current() settings.Settings
}

// Options wires the status sources. Gatherer may be nil, which disables /metrics.
type Options struct {
	Logger        *utils.Logger
	Engine        EngineState
	Settings      SettingsSource
	Connections   ConnectionCounter
	Telemetry     TelemetrySource
	Gatherer      prometheus.Gatherer
	WebSocketPath string
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status      string             `json:"status"`
	Model       string             `json:"model"`
	Device      string             `json:"device"`
	Ready       bool               `json:"ready"`
	Endpoints   map[string]string  `json:"endpoints"`
	Connections int                `json:"connections"`
	Telemetry   telemetry.Snapshot `json:"telemetry"`
}

// Service 系统状态、健康检查与文档路由
type Service struct {
	opts      Options
	endpoints map[string]string
}

func NewService(opts Options) (*Service, error) {
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "system.new", "logger is required")
	}
	if opts.Engine == nil || opts.Settings == nil {
		return nil, errors.New(errors.KindConfig, "system.new", "engine and settings sources are required")
	}
	if opts.WebSocketPath == "" {
		opts.WebSocketPath = "/ws/detect"
	}

	return &Service{
		opts: opts,
		endpoints: map[string]string{
			"detect":    "POST /api/detect",
			"test":      "POST /api/test",
			"websocket": "WS " + opts.WebSocketPath,
			"health":    "GET /health",
			"settings":  "POST /api/settings",
			"metrics":   "GET /metrics",
			"docs":      "GET /docs",
		},
	}, nil
}

// Register mounts root level routes on root and status under root's /api.
func (s *Service) Register(ctx context.Context, root *gin.RouterGroup) error {
	root.GET("/", s.handleRoot)
	root.GET("/health", s.handleHealth)
	root.GET("/api/status", s.handleStatus)
	root.GET("/openapi.json", s.handleOpenAPI)
	root.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	if s.opts.Gatherer != nil {
		root.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	s.opts.Logger.InfoTag("HTTP", "system routes registered")
	return nil
}

func (s *Service) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pose Detection API", "version": Version})
}

// handleHealth
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} object
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": ServiceName})
}

// handleStatus
// @Summary Service status
// @Description Loaded model, endpoint list, open stream connections and the current telemetry window.
// @Tags System
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /status [get]
func (s *Service) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:    "running",
		Ready:     s.opts.Engine.Ready(),
		Endpoints: s.endpoints,
	}

	if spec, ok := s.opts.Engine.Loaded(); ok {
		resp.Model, resp.Device = spec.Model, spec.Device
	} else {
		current := s.opts.Settings.Current()
		resp.Model, resp.Device = current.Model, current.Device
	}
	if s.opts.Connections != nil {
		resp.Connections = s.opts.Connections.Count()
	}
	if s.opts.Telemetry != nil {
		resp.Telemetry = s.opts.Telemetry.Snapshot()
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleOpenAPI(c *gin.Context) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.opts.Logger.ErrorTag("HTTP", "openapi document unavailable: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
}
