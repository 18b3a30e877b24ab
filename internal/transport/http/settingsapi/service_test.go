package settingsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pose-stream-server-go/internal/domain/inference"
	"pose-stream-server-go/internal/domain/registry"
	"pose-stream-server-go/internal/domain/settings"
	platformerrors "pose-stream-server-go/internal/platform/errors"
	platformtesting "pose-stream-server-go/internal/platform/testing"
)

type fakeStore struct {
	current   settings.Settings
	updates   []map[string]interface{}
	resets    int
	refreshes int
	report    registry.RefreshReport
	err       error
}

func (f *fakeStore) Current() settings.Settings { return f.current }

func (f *fakeStore) Available() settings.AvailableSettings {
	return settings.AvailableSettings{DownloadedModels: []string{f.current.Model}}
}

func (f *fakeStore) Update(_ context.Context, partial map[string]interface{}) (settings.Applied, error) {
	f.updates = append(f.updates, partial)
	needs := false
	if m, ok := partial["model"].(string); ok && m != f.current.Model {
		f.current.Model = m
		needs = true
	}
	if c, ok := partial["confidence"].(float64); ok {
		f.current.Confidence = c
	}
	return settings.Applied{Settings: f.current, NeedsRebuild: needs}, f.err
}

func (f *fakeStore) Reset(context.Context) (settings.Applied, error) {
	f.resets++
	return settings.Applied{Settings: f.current}, f.err
}

func (f *fakeStore) Refresh() registry.RefreshReport {
	f.refreshes++
	return f.report
}

func setup(t *testing.T, store *fakeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := NewService(store, platformtesting.SetupUtilsLogger(t))
	require.NoError(t, err)
	engine := gin.New()
	require.NoError(t, svc.Register(context.Background(), engine.Group("/api")))
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	var out map[string]interface{}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func baseSettings() settings.Settings {
	return settings.Settings{Model: "yolo11n-pose", Device: "cpu", Confidence: 0.5, IOUThreshold: 0.45, MaxDetections: 10}
}

func TestGetSettings_RefreshesFirst(t *testing.T) {
	store := &fakeStore{current: baseSettings()}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 1, store.refreshes)
	current := out["settings"].(map[string]interface{})
	assert.Equal(t, "yolo11n-pose", current["model"])
}

func TestGetAvailable(t *testing.T) {
	store := &fakeStore{current: baseSettings()}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodGet, "/api/settings/available", "")
	require.Equal(t, http.StatusOK, code)
	available := out["available_settings"].(map[string]interface{})
	assert.Equal(t, []interface{}{"yolo11n-pose"}, available["downloaded_models"])
}

func TestUpdateSettings(t *testing.T) {
	store := &fakeStore{current: baseSettings()}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodPost, "/api/settings", `{"model":"yolo11s-pose","confidence":0.7,"bogus":1}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Settings updated successfully", out["message"])
	assert.Equal(t, true, out["needs_rebuild"])
	assert.Contains(t, out, "available_settings")
	require.Len(t, store.updates, 1)
	assert.Equal(t, 0.7, store.updates[0]["confidence"])
	assert.Contains(t, store.updates[0], "bogus")
}

func TestUpdateSettings_BadJSON(t *testing.T) {
	store := &fakeStore{current: baseSettings()}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodPost, "/api/settings", `[1,2`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])
	assert.Empty(t, store.updates)
}

func TestUpdateSettings_RebuildFailure(t *testing.T) {
	store := &fakeStore{
		current: baseSettings(),
		err:     platformerrors.Wrap(platformerrors.KindEngine, "inference.rebuild", "model file missing", inference.ErrEngineRebuild),
	}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodPost, "/api/settings", `{"model":"yolo11x-pose"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "model file missing", out["error"])
}

func TestResetSettings(t *testing.T) {
	store := &fakeStore{current: baseSettings()}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodPost, "/api/settings/reset", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Settings reset to defaults", out["message"])
	assert.Equal(t, 1, store.resets)
}

func TestRefreshModels(t *testing.T) {
	store := &fakeStore{current: baseSettings(), report: registry.RefreshReport{AddedModels: []string{"yolo11s-pose"}}}
	engine := setup(t, store)

	code, out := do(t, engine, http.MethodPost, "/api/settings/refresh-models", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Model information refreshed successfully", out["message"])
	assert.Equal(t, false, out["needs_rebuild"])
	refresh := out["refresh"].(map[string]interface{})
	assert.Equal(t, []interface{}{"yolo11s-pose"}, refresh["added_models"])
}
