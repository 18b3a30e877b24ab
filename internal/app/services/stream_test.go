package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pose-stream-server-go/internal/domain/envelope"
	imagepkg "pose-stream-server-go/internal/domain/image"
	"pose-stream-server-go/internal/domain/inference"
	"pose-stream-server-go/internal/domain/inference/inferencetest"
	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/domain/telemetry"
	"pose-stream-server-go/internal/transport/ws"
)

type fixedSettings struct{}

func (fixedSettings) Current() settings.Settings {
	return settings.Settings{Model: "yolo11n-pose", Device: "cpu", Confidence: 0.25, IOUThreshold: 0.45, MaxDetections: 300}
}

type streamFixture struct {
	svc   *StreamService
	agg   *telemetry.Aggregator
	hub   *ws.Hub
	url   string
	model *inferencetest.Engine
}

func newStreamFixture(t *testing.T, idle time.Duration) *streamFixture {
	t.Helper()

	engine := &inferencetest.Engine{Detections: []inference.RawDetection{inferencetest.Person(0.9)}}
	session := inference.NewSession(inference.Options{
		Factory:  &inferencetest.Factory{Engines: []inference.Engine{engine}},
		Decoder:  imagepkg.NewPipeline(imagepkg.Options{Limits: imagepkg.DefaultLimits()}),
		Settings: fixedSettings{},
	})
	require.NoError(t, session.Rebuild(context.Background(), settings.EngineSpec{Model: "yolo11n-pose", Device: "cpu"}))

	agg := telemetry.NewAggregator(telemetry.Options{})
	svc := NewStreamService(StreamOptions{
		Detector:    session,
		Recorder:    agg,
		IdleTimeout: idle,
	})

	hub := ws.NewHub(nil, ws.HubOptions{})
	router := ws.NewRouter(hub, nil, ws.RouterOptions{MaxMessageBytes: 8 << 20})
	router.SetHandlerBuilder(svc.BuildHandler)
	srv := httptest.NewServer(http.HandlerFunc(router.Handle))
	t.Cleanup(func() {
		hub.CloseAll(nil)
		srv.Close()
		_ = session.Close()
	})

	return &streamFixture{
		svc:   svc,
		agg:   agg,
		hub:   hub,
		url:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/detect",
		model: engine,
	}
}

func (f *streamFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func TestStream_FrameEchoesClientHeader(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)
	id := uuid.New()

	frame := envelope.Encode(1000, id, inferencetest.PNG(10, 10))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	msg := readJSON(t, conn)
	assert.Equal(t, true, msg["success"])
	assert.Equal(t, float64(1000), msg["timestamp"])
	assert.Equal(t, id.String(), msg["correlationId"])
	assert.Equal(t, float64(1), msg["count"])
	assert.Contains(t, msg, "responseTimestamp")
	assert.NotContains(t, msg, "error")

	detections, ok := msg["detections"].([]any)
	require.True(t, ok)
	require.Len(t, detections, 1)
	first := detections[0].(map[string]any)
	assert.Equal(t, float64(0), first["id"])
	assert.Len(t, first["keypoints"], 17)

	assert.Eventually(t, func() bool { return f.agg.Snapshot().FramesProcessed == 1 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, f.agg.Snapshot().TotalDetections)
}

func TestStream_GarbagePayloadReturnsErrorEnvelope(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)
	id := uuid.New()

	frame := envelope.Encode(1000, id, []byte("this is not an image at all"))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	msg := readJSON(t, conn)
	assert.Equal(t, false, msg["success"])
	assert.Equal(t, "Invalid image data", msg["error"])
	assert.Equal(t, float64(1000), msg["timestamp"])
	assert.Equal(t, id.String(), msg["correlationId"])
	assert.NotContains(t, msg, "detections")

	// connection stays usable
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, envelope.Encode(2000, id, inferencetest.PNG(10, 10))))
	msg = readJSON(t, conn)
	assert.Equal(t, true, msg["success"])
	assert.Equal(t, float64(2000), msg["timestamp"])

	snap := f.agg.Snapshot()
	assert.EqualValues(t, 2, snap.FramesProcessed)
	assert.EqualValues(t, 1, snap.FramesFailed)
}

func TestStream_ShortFrameUsesServerTimestamp(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)

	before := time.Now().UnixMilli()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	msg := readJSON(t, conn)
	assert.Equal(t, false, msg["success"])
	assert.Contains(t, msg["error"], "malformed frame envelope")
	assert.GreaterOrEqual(t, msg["timestamp"].(float64), float64(before))
	assert.NotContains(t, msg, "correlationId")
	assert.Contains(t, msg, "processingTimeMs")
}

func TestStream_Heartbeat(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	msg := readJSON(t, conn)
	assert.Equal(t, "heartbeat_response", msg["type"])
	assert.Greater(t, msg["timestamp"].(float64), float64(0))
}

func TestStream_UnknownTextIsIgnored(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))

	// the first reply is the heartbeat response; nothing was sent for the others
	msg := readJSON(t, conn)
	assert.Equal(t, "heartbeat_response", msg["type"])
}

func TestStream_IdlePingsKeepConnectionOpen(t *testing.T) {
	const idle = 150 * time.Millisecond
	f := newStreamFixture(t, idle)
	conn := f.dial(t)

	start := time.Now()
	var pings int
	for pings < 3 {
		msg := readJSON(t, conn)
		require.Equal(t, "ping", msg["type"])
		pings++
	}
	elapsed := time.Since(start)

	// one ping per interval: three pings need at least three intervals
	assert.GreaterOrEqual(t, elapsed, 3*idle-20*time.Millisecond)
	assert.Equal(t, 1, f.hub.Count())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	for {
		msg := readJSON(t, conn)
		if msg["type"] == "heartbeat_response" {
			break
		}
		require.Equal(t, "ping", msg["type"])
	}
}

func TestStream_DisconnectUnregisters(t *testing.T) {
	f := newStreamFixture(t, time.Minute)
	conn := f.dial(t)
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type countingDetector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *countingDetector) Run(ctx context.Context, raw []byte) (*inference.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &inference.Result{Detections: []inference.Detection{}, Count: 0}, nil
}

func TestProcessFrame_Timing(t *testing.T) {
	base := time.UnixMilli(5_000)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 4 * time.Millisecond)
	}
	det := &countingDetector{}
	svc := NewStreamService(StreamOptions{Detector: det, Now: clock})

	res := svc.ProcessFrame(context.Background(), envelope.Encode(42, uuid.Nil, []byte("x")))
	assert.True(t, res.Success)
	assert.EqualValues(t, 42, res.Timestamp)
	assert.InDelta(t, 4.0, res.ProcessingTimeMs, 1e-9)
	assert.Equal(t, base.Add(12*time.Millisecond).UnixMilli(), res.ResponseTimestamp)
	assert.Equal(t, 1, det.calls)

	det.err = errors.New("boom")
	res = svc.ProcessFrame(context.Background(), envelope.Encode(43, uuid.Nil, nil))
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)
	assert.Nil(t, res.Result)
	assert.Equal(t, uuid.Nil.String(), res.CorrelationID)
}

func TestProcessFrame_MalformedKeepsTiming(t *testing.T) {
	base := time.UnixMilli(9_000)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 2 * time.Millisecond)
	}
	det := &countingDetector{}
	svc := NewStreamService(StreamOptions{Detector: det, Now: clock})

	res := svc.ProcessFrame(context.Background(), []byte{1, 2, 3})
	assert.False(t, res.Success)
	assert.InDelta(t, 2.0, res.ProcessingTimeMs, 1e-9)
	assert.Zero(t, det.calls)

	data, err := sonic.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(data, &out))
	assert.Contains(t, out, "processingTimeMs")
}

func TestProcessFrame_ResultJSONShape(t *testing.T) {
	res := DetectionResult{
		Success:           true,
		Result:            &inference.Result{Detections: []inference.Detection{}, Count: 0},
		Timestamp:         1000,
		CorrelationID:     "abc",
		ProcessingTimeMs:  1.5,
		ResponseTimestamp: 2000,
	}
	data, err := sonic.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"detections":[],"count":0,"timestamp":1000,"correlationId":"abc","processingTimeMs":1.5,"responseTimestamp":2000}`, string(data))

	failed := DetectionResult{Error: "Invalid image data", Timestamp: 1000, ResponseTimestamp: 2000}
	data, err = sonic.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Invalid image data","timestamp":1000,"processingTimeMs":0,"responseTimestamp":2000}`, string(data))
}
