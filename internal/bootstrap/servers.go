package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	platformerrors "pose-stream-server-go/internal/platform/errors"
	httptransport "pose-stream-server-go/internal/transport/http"
	"pose-stream-server-go/internal/transport/http/detect"
	"pose-stream-server-go/internal/transport/http/settingsapi"
	"pose-stream-server-go/internal/transport/http/system"
	"pose-stream-server-go/internal/transport/ws"
)

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	cfg := state.config
	wsCfg := cfg.Transport.WebSocket
	shared := cfg.Web.Enabled && wsCfg.Enabled && wsCfg.Port == cfg.Web.Port

	if !cfg.Web.Enabled && !wsCfg.Enabled {
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.start", "both web and websocket servers are disabled")
	}

	if wsCfg.Enabled && !shared {
		if err := startTransportServer(state, g, groupCtx); err != nil {
			return fmt.Errorf("start websocket server: %w", err)
		}
	}

	if cfg.Web.Enabled {
		if _, err := startHTTPServer(state, shared, g, groupCtx); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}

	return nil
}

func startTransportServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	wsCfg := state.config.Transport.WebSocket
	addr := fmt.Sprintf("%s:%d", wsCfg.IP, wsCfg.Port)

	server := ws.NewServer(ws.ServerConfig{Addr: addr, Path: wsCfg.Path}, state.wsRouter, state.logger)
	g.Go(func() error {
		state.logger.InfoTag("WebSocket", "stream endpoint ws://%s%s", addr, wsCfg.Path)
		if err := server.Start(groupCtx); err != nil {
			state.logger.ErrorTag("WebSocket", "websocket server failed: %v", err)
			return err
		}
		return nil
	})
	return nil
}

// buildHTTPHandler assembles the gin engine. When mountStream is set the
// websocket route is served from the same engine.
func buildHTTPHandler(ctx context.Context, state *appState, mountStream bool) (http.Handler, error) {
	cfg := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, err
	}

	detectService, err := detect.NewService(state.session, state.pipeline, cfg.Web.MaxUploadBytes, logger)
	if err != nil {
		return nil, err
	}
	if err := detectService.Register(ctx, router.API); err != nil {
		return nil, err
	}

	settingsService, err := settingsapi.NewService(state.settings, logger)
	if err != nil {
		return nil, err
	}
	if err := settingsService.Register(ctx, router.API); err != nil {
		return nil, err
	}

	systemService, err := system.NewService(system.Options{
		Logger:        logger,
		Engine:        state.session,
		Settings:      state.settings,
		Connections:   state.hub,
		Telemetry:     state.telemetry,
		Gatherer:      state.metricsRegistry,
		WebSocketPath: cfg.Transport.WebSocket.Path,
	})
	if err != nil {
		return nil, err
	}
	if err := systemService.Register(ctx, &router.Engine.RouterGroup); err != nil {
		return nil, err
	}

	if mountStream {
		state.wsRouter.SetBaseContext(ctx)
		router.Engine.GET(cfg.Transport.WebSocket.Path, func(c *gin.Context) {
			state.wsRouter.Handle(c.Writer, c.Request)
		})
	}

	return router.Engine, nil
}

func startHTTPServer(state *appState, mountStream bool, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	cfg := state.config
	logger := state.logger

	handler, err := buildHTTPHandler(groupCtx, state, mountStream)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Web.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "API docs at http://localhost:%d/docs", cfg.Web.Port)
		if mountStream {
			logger.InfoTag("WebSocket", "stream endpoint ws://localhost:%d%s", cfg.Web.Port, cfg.Transport.WebSocket.Path)
		}

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "http shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "http server stopped")
			}
			if mountStream {
				state.hub.CloseAll(ws.ErrSessionShutdown)
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "http server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}
