package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"pose-stream-server-go/internal/utils"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ServerConfig places the websocket endpoint on its own listener.
type ServerConfig struct {
	Addr string
	// Path defaults to "/".
	Path string
}

// Server serves only the websocket upgrade path. It is used when the stream
// endpoint does not share the HTTP API's port.
type Server struct {
	cfg    ServerConfig
	router *Router
	logger *utils.Logger

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(cfg ServerConfig, router *Router, logger *utils.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &Server{cfg: cfg, router: router, logger: logger}
}

// Start listens on cfg.Addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve 在 ln 上接受升级请求, 直到 ctx 结束或调用 Stop
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.router.Handle)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.router.SetBaseContext(ctx)
	stopOnDone := context.AfterFunc(ctx, func() { _ = s.Stop() })
	defer stopOnDone()

	s.logger.InfoTag("WebSocket", "listening on %s%s", ln.Addr(), s.cfg.Path)
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and then every live session; hijacked websocket
// connections are invisible to http.Server.Shutdown.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.router.Hub().CloseAll(ErrSessionShutdown)
	return err
}

func (s *Server) Count() int {
	return s.router.Hub().Count()
}
