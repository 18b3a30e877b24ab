package ws

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

// HandlerBuilder creates the per-connection handler once the upgrade succeeded.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

const (
	defaultHandshakeTimeout = 10 * time.Second
	readBufferSize          = 64 * 1024
	writeBufferSize         = 16 * 1024
)

// Router upgrades requests and hands each connection to a Session tracked by
// the hub.
type Router struct {
	hub      *Hub
	logger   *utils.Logger
	upgrader websocket.Upgrader
	opts     RouterOptions

	builder atomic.Pointer[HandlerBuilder]
	baseCtx atomic.Pointer[context.Context]
}

type RouterOptions struct {
	HandshakeTimeout time.Duration
	// MaxMessageBytes caps a single inbound frame; zero leaves gorilla's default.
	MaxMessageBytes int64
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

func NewRouter(hub *Hub, logger *utils.Logger, opts RouterOptions) *Router {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}

	r := &Router{
		hub:    hub,
		logger: logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   readBufferSize,
			WriteBufferSize:  writeBufferSize,
			CheckOrigin:      opts.CheckOrigin,
		},
	}
	r.SetBaseContext(context.Background())
	return r
}

// SetHandlerBuilder installs the builder; until then Handle answers 503.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(&builder)
}

// SetBaseContext sets the parent of every session context. Sessions are
// detached from the upgrade request so they outlive the handshake.
func (r *Router) SetBaseContext(ctx context.Context) {
	if ctx != nil {
		r.baseCtx.Store(&ctx)
	}
}

func (r *Router) Hub() *Hub {
	return r.hub
}

// Handle 升级 HTTP 连接并启动会话
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	builder := r.builder.Load()
	if builder == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeoutCause(req.Context(), r.opts.HandshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	ctx, endSpan := observability.StartSpan(ctx, "transport.websocket", "handshake")

	fail := func(reason string, err error) {
		observability.RecordMetric(ctx, "websocket.handshake.failed", 1, map[string]string{
			"component": "transport.websocket",
			"reason":    reason,
		})
		r.logger.ErrorTag("WebSocket", "%s: %v", reason, err)
		endSpan(err)
	}

	conn, err := r.upgrader.Upgrade(w, req.WithContext(ctx), nil)
	if err != nil {
		fail("upgrade", err)
		return
	}
	if r.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(r.opts.MaxMessageBytes)
	}

	wsConn := NewConnection(uuid.NewString(), clientID(req), conn)
	handler, err := (*builder)(wsConn, req)
	if handler == nil && err == nil {
		err = errors.New("builder returned no handler")
	}
	if err != nil {
		_ = wsConn.Close()
		fail("build handler", err)
		return
	}
	endSpan(nil)

	session := NewSession(*r.baseCtx.Load(), handler, wsConn, r.logger)
	r.hub.Register(session)
	r.logger.InfoTag("WebSocket", "session %s (client %q) opened from %s (active %d)",
		session.ID(), wsConn.ClientID(), wsConn.RemoteAddr(), r.hub.Count())

	go session.Run(func(runErr error) {
		if !r.hub.Unregister(session) {
			return
		}
		if runErr != nil {
			r.logger.WarnTag("WebSocket", "session %s ended: %v", session.ID(), runErr)
		}
		r.logger.InfoTag("WebSocket", "session %s closed (active %d)", session.ID(), r.hub.Count())
	})
}

// clientID takes the Client-Id header, then the client_id query parameter.
// It is informational only; several connections may share one.
func clientID(req *http.Request) string {
	if id := req.Header.Get("Client-Id"); id != "" {
		return id
	}
	return req.URL.Query().Get("client_id")
}
