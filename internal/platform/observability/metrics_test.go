package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_ObserveFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "test")
	require.NoError(t, err)

	m.ObserveFrame(20*time.Millisecond, 3, true)
	m.ObserveFrame(5*time.Millisecond, 7, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DetectionsTotal))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "dup")
	require.NoError(t, err)
	_, err = NewMetrics(reg, "dup")
	assert.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFrame(time.Millisecond, 1, true)
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.ObserveRebuild(errors.New("boom"))
		m.ObserveSettingsChange("update")
	})
}

func TestMetrics_Connections(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "")
	require.NoError(t, err)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))

	m.ObserveRebuild(nil)
	m.ObserveRebuild(errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRebuilds.WithLabelValues("failed")))
}

func TestSetup(t *testing.T) {
	reg, metrics, shutdown, err := Setup(context.Background(), Config{Enabled: true}, nil)
	require.NoError(t, err)
	require.NotNil(t, reg)
	require.NotNil(t, metrics)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.True(t, Enabled())

	require.NoError(t, shutdown(context.Background()))
	assert.False(t, Enabled())
}

func TestStartSpan_NoLogger(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "inference", "run")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(nil) })
}

func TestRecordMetric_RoutesToCollectors(t *testing.T) {
	_, m, shutdown, err := Setup(context.Background(), Config{Namespace: "route"}, nil)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx := context.Background()
	RecordMetric(ctx, MetricHTTPRequests, 1, map[string]string{"method": "GET", "path": "/api/health", "status": "200"})
	RecordMetric(ctx, MetricHTTPRequests, 1, map[string]string{"method": "GET", "path": "/api/health", "status": "200"})
	RecordMetric(ctx, MetricHTTPDurationMs, 250, map[string]string{"method": "GET", "path": "/api/health"})
	RecordMetric(ctx, "websocket.upgrade.error", 1, map[string]string{"component": "transport.websocket"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/health", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("websocket.upgrade.error", "transport.websocket")))
}

func TestStartSpan_NestsParent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, _, shutdown, err := Setup(context.Background(), Config{Enabled: true, Namespace: "span"}, logger)
	require.NoError(t, err)
	defer shutdown(context.Background())

	outerCtx, endOuter := StartSpan(context.Background(), "http.server", "/api/detect")
	innerCtx, endInner := StartSpan(outerCtx, "inference", "run")

	outer, ok := SpanFromContext(outerCtx)
	require.True(t, ok)
	inner, ok := SpanFromContext(innerCtx)
	require.True(t, ok)
	assert.Empty(t, outer.Parent)
	assert.Equal(t, outer.ID, inner.Parent)

	endInner(errors.New("decode failed"))
	endOuter(nil)
	assert.Contains(t, buf.String(), `"parent":"`+outer.ID+`"`)
	assert.Contains(t, buf.String(), "decode failed")
}
