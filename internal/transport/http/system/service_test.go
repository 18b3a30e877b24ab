package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/domain/telemetry"
	platformtesting "pose-stream-server-go/internal/platform/testing"
)

type fakeEngine struct {
	spec  settings.EngineSpec
	ready bool
}

func (f fakeEngine) Ready() bool                         { return f.ready }
func (f fakeEngine) Loaded() (settings.EngineSpec, bool) { return f.spec, f.ready }

type fakeSettings struct{ cur settings.Settings }

func (f fakeSettings) Current() settings.Settings { return f.cur }

type fixedCount int

func (n fixedCount) Count() int { return int(n) }

type fixedTelemetry telemetry.Snapshot

func (t fixedTelemetry) Snapshot() telemetry.Snapshot { return telemetry.Snapshot(t) }

func newEngine(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts.Logger = platformtesting.SetupUtilsLogger(t)
	svc, err := NewService(opts)
	require.NoError(t, err)
	engine := gin.New()
	require.NoError(t, svc.Register(context.Background(), engine.Group("")))
	return engine
}

func get(t *testing.T, engine *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewService_Validates(t *testing.T) {
	_, err := NewService(Options{})
	require.Error(t, err)
}

func TestRootAndHealth(t *testing.T) {
	engine := newEngine(t, Options{Engine: fakeEngine{}, Settings: fakeSettings{}})

	rec := get(t, engine, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pose Detection API")

	rec = get(t, engine, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"pose-stream-server"}`, rec.Body.String())
}

func TestStatus_LoadedEngine(t *testing.T) {
	engine := newEngine(t, Options{
		Engine:      fakeEngine{spec: settings.EngineSpec{Model: "yolo11s-pose", Device: "cuda"}, ready: true},
		Settings:    fakeSettings{cur: settings.Settings{Model: "yolo11n-pose", Device: "cpu"}},
		Connections: fixedCount(3),
		Telemetry:   fixedTelemetry{FramesProcessed: 12, TotalDetections: 20},
	})

	rec := get(t, engine, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var out StatusResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "running", out.Status)
	assert.Equal(t, "yolo11s-pose", out.Model)
	assert.Equal(t, "cuda", out.Device)
	assert.True(t, out.Ready)
	assert.Equal(t, 3, out.Connections)
	assert.EqualValues(t, 12, out.Telemetry.FramesProcessed)
	assert.Equal(t, "WS /ws/detect", out.Endpoints["websocket"])
}

func TestStatus_FallsBackToSettings(t *testing.T) {
	engine := newEngine(t, Options{
		Engine:        fakeEngine{},
		Settings:      fakeSettings{cur: settings.Settings{Model: "yolo11n-pose", Device: "cpu"}},
		WebSocketPath: "/stream",
	})

	var out StatusResponse
	require.NoError(t, sonic.Unmarshal(get(t, engine, "/api/status").Body.Bytes(), &out))
	assert.Equal(t, "yolo11n-pose", out.Model)
	assert.False(t, out.Ready)
	assert.Zero(t, out.Connections)
	assert.Equal(t, "WS /stream", out.Endpoints["websocket"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "posestream_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	engine := newEngine(t, Options{Engine: fakeEngine{}, Settings: fakeSettings{}, Gatherer: reg})

	rec := get(t, engine, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "posestream_test_total 1")
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	engine := newEngine(t, Options{Engine: fakeEngine{}, Settings: fakeSettings{}})
	assert.Equal(t, http.StatusNotFound, get(t, engine, "/metrics").Code)
}

func TestDocs(t *testing.T) {
	engine := newEngine(t, Options{Engine: fakeEngine{}, Settings: fakeSettings{}})

	rec := get(t, engine, "/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/settings/refresh-models"`)
	assert.Contains(t, rec.Body.String(), "Pose Stream Server API")

	rec = get(t, engine, "/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-url="/openapi.json"`)
}
