package httptransport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"pose-stream-server-go/internal/platform/config"
	"pose-stream-server-go/internal/platform/errors"
	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *utils.Logger
	// StaticRoot overrides web.static_dir. An empty directory setting disables static serving.
	StaticRoot string
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS and observability middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindConfig, "http.build", "http router requires config")
	}
	logger := opts.Logger

	mode := gin.ReleaseMode
	if strings.EqualFold(opts.Config.Log.Level, "debug") {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)

	engine := gin.New()
	engine.Use(gin.Recovery(), accessMiddleware(logger))

	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, errors.Wrap(errors.KindTransport, "http.build", "set trusted proxies", err)
	}

	engine.Use(cors.New(corsConfig(opts.Config.Web.CORSOrigins)))

	staticRoot := opts.StaticRoot
	if staticRoot == "" {
		staticRoot = opts.Config.Web.StaticDir
	}
	if staticRoot != "" {
		engine.Use(static.Serve("/", static.LocalFile(staticRoot, false)))
	}

	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			RespondError(c, http.StatusNotFound, "Not Found")
			return
		}
		c.Status(http.StatusNotFound)
	})

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Client-Id",
		},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// accessMiddleware wraps each request in a span, feeds the request counter
// and latency histogram, and writes a debug access line.
func accessMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		ctx, endSpan := observability.StartSpan(c.Request.Context(), "http.server", method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		began := time.Now()

		c.Next()

		elapsed := time.Since(began)
		status := c.Writer.Status()

		var failure error
		switch {
		case len(c.Errors) > 0:
			failure = c.Errors.Last().Err
		case status >= http.StatusInternalServerError:
			failure = fmt.Errorf("%s %s answered %d", method, route, status)
		}
		endSpan(failure)

		observability.RecordMetric(ctx, observability.MetricHTTPRequests, 1, map[string]string{
			"method": method,
			"path":   route,
			"status": strconv.Itoa(status),
		})
		observability.RecordMetric(ctx, observability.MetricHTTPDurationMs, float64(elapsed.Microseconds())/1000, map[string]string{
			"method": method,
			"path":   route,
		})
		logger.DebugTag("HTTP", "%s %s -> %d (%s)", method, c.Request.URL.Path, status, elapsed)
	}
}
