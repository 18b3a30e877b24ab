package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"pose-stream-server-go/internal/domain/eventbus"
	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

// HubOptions wires optional collaborators.
type HubOptions struct {
	Publisher eventbus.Publisher
	Metrics   *observability.Metrics
}

// Hub tracks the active websocket sessions for a transport instance.
type Hub struct {
	logger    *utils.Logger
	publisher eventbus.Publisher
	metrics   *observability.Metrics
	sessions  sync.Map // map[string]*Session
	active    atomic.Int64
}

// NewHub builds a fresh session hub.
func NewHub(logger *utils.Logger, opts HubOptions) *Hub {
	if opts.Publisher == nil {
		opts.Publisher = eventbus.Nop{}
	}
	return &Hub{
		logger:    logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
	}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	if _, loaded := h.sessions.LoadOrStore(session.ID(), session); loaded {
		h.logger.WarnTag("WebSocket", "session %s already registered", session.ID())
		return
	}
	active := h.active.Add(1)
	h.metrics.ConnectionOpened()
	h.publisher.PublishAsync(eventbus.EventConnectionOpened, eventbus.ConnectionEventData{
		SessionID:  session.ID(),
		ClientID:   clientIDOf(session),
		RemoteAddr: remoteAddr(session),
		Active:     int(active),
	})
}

// Unregister removes session from the hub. An entry is only removed by the
// session it belongs to, and only once; it reports whether this call did it.
func (h *Hub) Unregister(session *Session) bool {
	if session == nil || session.ID() == "" {
		return false
	}
	if !h.sessions.CompareAndDelete(session.ID(), session) {
		return false
	}
	active := h.active.Add(-1)
	h.metrics.ConnectionClosed()
	h.publisher.PublishAsync(eventbus.EventConnectionClosed, eventbus.ConnectionEventData{
		SessionID:  session.ID(),
		ClientID:   clientIDOf(session),
		RemoteAddr: remoteAddr(session),
		Active:     int(active),
	})
	return true
}

// Get returns the session registered under id.
func (h *Hub) Get(id string) (*Session, bool) {
	value, ok := h.sessions.Load(id)
	if !ok {
		return nil, false
	}
	session, ok := value.(*Session)
	return session, ok
}

// Broadcast sends v as JSON to every open session and returns how many
// writes succeeded.
func (h *Hub) Broadcast(v any) int {
	sent := 0
	h.sessions.Range(func(_, value any) bool {
		session, ok := value.(*Session)
		if !ok || session.State() != StateOpen || session.Conn() == nil {
			return true
		}
		if err := session.Conn().WriteJSON(v); err != nil {
			h.logger.DebugTag("WebSocket", "broadcast to %s failed: %v", session.ID(), err)
			return true
		}
		sent++
		return true
	})
	return sent
}

// BroadcastSettings subscribes the hub to settings events and forwards them
// to connected clients as {type:"settings_updated"} messages.
func (h *Hub) BroadcastSettings(sub eventbus.Subscriber) error {
	forward := func(evt eventbus.SettingsEventData) {
		n := h.Broadcast(map[string]interface{}{
			"type":          "settings_updated",
			"op":            evt.Op,
			"settings":      evt.Settings,
			"needs_rebuild": evt.NeedsRebuild,
			"timestamp":     time.Now().UnixMilli(),
		})
		h.logger.DebugTag("WebSocket", "settings %s broadcast to %d clients", evt.Op, n)
	}
	if err := sub.Subscribe(eventbus.EventSettingsUpdated, forward); err != nil {
		return err
	}
	return sub.Subscribe(eventbus.EventSettingsReset, forward)
}

// CloseAll terminates all active sessions.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(_, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
			h.Unregister(session)
		}
		return true
	})
}

// Count exposes the number of active websocket connections.
func (h *Hub) Count() int {
	return int(h.active.Load())
}

func remoteAddr(s *Session) string {
	if s == nil || s.Conn() == nil {
		return ""
	}
	return s.Conn().RemoteAddr()
}

func clientIDOf(s *Session) string {
	if s == nil || s.Conn() == nil {
		return ""
	}
	return s.Conn().ClientID()
}
