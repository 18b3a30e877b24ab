package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"pose-stream-server-go/internal/domain/envelope"
	"pose-stream-server-go/internal/domain/inference"
	platformerrors "pose-stream-server-go/internal/platform/errors"
	"pose-stream-server-go/internal/transport/ws"
	"pose-stream-server-go/internal/utils"
)

const logTag = "WebSocket"

// Detector runs pose detection on one image payload.
type Detector interface {
	Run(ctx context.Context, raw []byte) (*inference.Result, error)
}

// FrameRecorder receives per-frame telemetry.
type FrameRecorder interface {
	Record(latency time.Duration, detections int, ok bool)
}

type StreamOptions struct {
	Detector    Detector
	Recorder    FrameRecorder
	Logger      *utils.Logger
	IdleTimeout time.Duration
	Now         func() time.Time
}

// StreamService holds what every stream connection shares and builds a
// handler per upgraded connection.
type StreamService struct {
	detector Detector
	recorder FrameRecorder
	logger   *utils.Logger
	idle     time.Duration
	now      func() time.Time
}

func NewStreamService(opts StreamOptions) *StreamService {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StreamService{
		detector: opts.Detector,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		idle:     opts.IdleTimeout,
		now:      opts.Now,
	}
}

// BuildHandler satisfies ws.HandlerBuilder.
func (s *StreamService) BuildHandler(conn *ws.Connection, _ *http.Request) (ws.SessionHandler, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	return &streamHandler{svc: s, conn: conn}, nil
}

// ProcessFrame runs one envelope-wrapped frame through detection. It never
// fails: every error is folded into an unsuccessful result, which carries the
// client's timestamp and correlation id whenever the header was complete.
func (s *StreamService) ProcessFrame(ctx context.Context, buf []byte) DetectionResult {
	start := s.now()

	env, err := envelope.Decode(buf)
	if err != nil {
		elapsed := s.now().Sub(start)
		s.record(elapsed, 0, false)
		s.logger.WarnTag(logTag, "rejecting frame: %v", err)
		// no header to echo back; fall back to the server clock
		return DetectionResult{
			Success:           false,
			Error:             fmt.Sprintf("%v: %s", envelope.ErrMalformedEnvelope, platformerrors.MessageOf(err)),
			Timestamp:         uint64(start.UnixMilli()),
			ProcessingTimeMs:  durationMs(elapsed),
			ResponseTimestamp: s.now().UnixMilli(),
		}
	}

	// an in-flight detection finishes even if the connection is closing
	result, err := s.detector.Run(context.WithoutCancel(ctx), env.Payload)
	elapsed := s.now().Sub(start)
	meta := envelope.Meta{Timestamp: env.Timestamp, CorrelationID: env.CorrelationID}

	if err != nil {
		s.record(elapsed, 0, false)
		res := DetectionResult{
			Success:           false,
			Error:             platformerrors.MessageOf(err),
			ProcessingTimeMs:  durationMs(elapsed),
			ResponseTimestamp: s.now().UnixMilli(),
		}
		res.withMeta(meta)
		return res
	}

	s.record(elapsed, result.Count, true)
	res := DetectionResult{
		Success:           true,
		Result:            result,
		ProcessingTimeMs:  durationMs(elapsed),
		ResponseTimestamp: s.now().UnixMilli(),
	}
	res.withMeta(meta)
	return res
}

func (s *StreamService) record(elapsed time.Duration, detections int, ok bool) {
	if s.recorder != nil {
		s.recorder.Record(elapsed, detections, ok)
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// streamHandler is the per-connection loop: wait for a message with the idle
// timeout, answer it, repeat. Frames from one connection are handled one at
// a time and answered in order.
type streamHandler struct {
	svc  *StreamService
	conn *ws.Connection
}

func (h *streamHandler) SessionID() string {
	return h.conn.ID()
}

func (h *streamHandler) Handle(ctx context.Context) error {
	for {
		msg, err := h.conn.Receive(ctx, h.svc.idle)
		switch {
		case errors.Is(err, ws.ErrIdleTimeout):
			if err := h.conn.WriteJSON(ControlMessage{Type: ControlPing, Timestamp: h.svc.now().UnixMilli()}); err != nil {
				return err
			}
			continue
		case err != nil:
			if isNormalClose(err) {
				return nil
			}
			return err
		}

		if err := h.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

func (h *streamHandler) dispatch(ctx context.Context, msg ws.Inbound) error {
	switch msg.Type {
	case websocket.BinaryMessage:
		return h.conn.WriteJSON(h.svc.ProcessFrame(ctx, msg.Data))
	case websocket.TextMessage:
		var ctrl ControlMessage
		if err := sonic.Unmarshal(msg.Data, &ctrl); err != nil {
			h.svc.logger.DebugTag(logTag, "ignoring malformed control message from %s", h.conn.ID())
			return nil
		}
		if ctrl.Type == ControlHeartbeat {
			return h.conn.WriteJSON(ControlMessage{Type: ControlHeartbeatResponse, Timestamp: h.svc.now().UnixMilli()})
		}
		return nil
	default:
		return nil
	}
}

func (h *streamHandler) Close() {}

func isNormalClose(err error) bool {
	if errors.Is(err, ws.ErrConnectionClosed) || errors.Is(err, context.Canceled) || errors.Is(err, ws.ErrSessionShutdown) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
