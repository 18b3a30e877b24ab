package ws

import (
	"context"
	"sync/atomic"
	"time"

	"pose-stream-server-go/internal/utils"
)

// handlerCloseTimeout bounds how long Close waits on SessionHandler.Close.
const handlerCloseTimeout = 5 * time.Second

// State is the lifecycle position of a Session. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

var stateNames = [...]string{"connecting", "open", "closing", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// SessionHandler drives one connection after the upgrade.
type SessionHandler interface {
	// Handle runs until the connection ends or ctx is cancelled.
	Handle(ctx context.Context) error
	Close()
	SessionID() string
}

// Session ties a handler to its connection and context. Its context is
// cancelled with the close reason as cause.
type Session struct {
	id      string
	handler SessionHandler
	conn    *Connection
	logger  *utils.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc
	state  atomic.Int32
}

func NewSession(parent context.Context, handler SessionHandler, conn *Connection, logger *utils.Logger) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      handler.SessionID(),
		handler: handler,
		conn:    conn,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Session) Context() context.Context { return s.ctx }
func (s *Session) ID() string               { return s.id }
func (s *Session) State() State             { return State(s.state.Load()) }
func (s *Session) Conn() *Connection        { return s.conn }

// advance moves the state from any earlier stage to next and reports whether
// this call made the move.
func (s *Session) advance(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// Run blocks in the handler, then closes the session and calls onDone with
// the handler's error.
func (s *Session) Run(onDone func(error)) {
	s.advance(StateOpen)
	err := s.handler.Handle(s.ctx)
	s.Close(err)
	if onDone != nil {
		onDone(err)
	}
}

// Close 关闭会话; 只有第一次调用生效
func (s *Session) Close(reason error) {
	if !s.advance(StateClosing) {
		return
	}
	if reason == nil {
		reason = ErrSessionShutdown
	}
	s.cancel(reason)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handler.Close()
	}()
	timer := time.NewTimer(handlerCloseTimeout)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		s.logger.WarnTag("WebSocket", "session %s: handler close still running after %s (%v)", s.id, handlerCloseTimeout, reason)
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.DebugTag("WebSocket", "session %s: close socket: %v", s.id, err)
		}
	}
	s.state.Store(int32(StateClosed))
}
