package settingsapi

import (
	"context"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"pose-stream-server-go/internal/domain/registry"
	"pose-stream-server-go/internal/domain/settings"
	"pose-stream-server-go/internal/platform/errors"
	httptransport "pose-stream-server-go/internal/transport/http"
	"pose-stream-server-go/internal/utils"
)

const maxBodyBytes = 64 << 10

// Store is the settings surface the HTTP layer drives.
type Store interface {
	Current() settings.Settings
	Available() settings.AvailableSettings
	Update(ctx context.Context, partial map[string]interface{}) (settings.Applied, error)
	Reset(ctx context.Context) (settings.Applied, error)
	Refresh() registry.RefreshReport
}

// CurrentResponse is returned by GET /settings.
type CurrentResponse struct {
	Success  bool              `json:"success"`
	Settings settings.Settings `json:"settings"`
}

// AvailableResponse is returned by GET /settings/available.
type AvailableResponse struct {
	Success           bool                       `json:"success"`
	AvailableSettings settings.AvailableSettings `json:"available_settings"`
}

// MutationResponse is returned by every settings POST.
type MutationResponse struct {
	Success           bool                       `json:"success"`
	Message           string                     `json:"message"`
	Settings          settings.Settings          `json:"settings"`
	AvailableSettings settings.AvailableSettings `json:"available_settings"`
	NeedsRebuild      bool                       `json:"needs_rebuild"`
	Refresh           *registry.RefreshReport    `json:"refresh,omitempty"`
}

// Service 模型设置的HTTP传输层实现
type Service struct {
	logger *utils.Logger
	store  Store
}

func NewService(store Store, logger *utils.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New(errors.KindConfig, "settingsapi.new", "settings store is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "settingsapi.new", "logger is required")
	}
	return &Service{logger: logger, store: store}, nil
}

// Register 注册设置相关的HTTP路由
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	group := router.Group("/settings")
	group.GET("", s.handleGet)
	group.POST("", s.handleUpdate)
	group.GET("/available", s.handleAvailable)
	group.POST("/reset", s.handleReset)
	group.POST("/refresh-models", s.handleRefresh)

	s.logger.InfoTag("HTTP", "settings routes registered")
	return nil
}

// handleGet
// @Summary Current detection settings
// @Description Rescans the model catalog, then returns the active settings.
// @Tags Settings
// @Produce json
// @Success 200 {object} CurrentResponse
// @Router /settings [get]
func (s *Service) handleGet(c *gin.Context) {
	s.store.Refresh()
	httptransport.RespondJSON(c, http.StatusOK, CurrentResponse{
		Success:  true,
		Settings: s.store.Current(),
	})
}

// handleAvailable
// @Summary Available settings and constraints
// @Tags Settings
// @Produce json
// @Success 200 {object} AvailableResponse
// @Router /settings/available [get]
func (s *Service) handleAvailable(c *gin.Context) {
	s.store.Refresh()
	httptransport.RespondJSON(c, http.StatusOK, AvailableResponse{
		Success:           true,
		AvailableSettings: s.store.Available(),
	})
}

// handleUpdate applies a partial settings object. Invalid values fall back
// per field; only a failed engine rebuild is reported as an error.
// @Summary Update detection settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param settings body object true "partial settings"
// @Success 200 {object} MutationResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /settings [post]
func (s *Service) handleUpdate(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	partial := map[string]interface{}{}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &partial); err != nil {
			s.logger.WarnTag("HTTP", "settings body rejected: %v", err)
			httptransport.RespondError(c, http.StatusBadRequest, "settings body must be a JSON object")
			return
		}
	}

	applied, err := s.store.Update(c.Request.Context(), partial)
	if err != nil {
		s.fail(c, "update", err)
		return
	}
	s.respondApplied(c, "Settings updated successfully", applied, nil)
}

// handleReset
// @Summary Reset settings to the best available defaults
// @Tags Settings
// @Produce json
// @Success 200 {object} MutationResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /settings/reset [post]
func (s *Service) handleReset(c *gin.Context) {
	applied, err := s.store.Reset(c.Request.Context())
	if err != nil {
		s.fail(c, "reset", err)
		return
	}
	s.respondApplied(c, "Settings reset to defaults", applied, nil)
}

// handleRefresh
// @Summary Rescan downloaded models and devices
// @Tags Settings
// @Produce json
// @Success 200 {object} MutationResponse
// @Router /settings/refresh-models [post]
func (s *Service) handleRefresh(c *gin.Context) {
	report := s.store.Refresh()
	if report.Changed() {
		s.logger.InfoTag("HTTP", "model catalog changed: %+v", report)
	}
	applied := settings.Applied{Settings: s.store.Current()}
	s.respondApplied(c, "Model information refreshed successfully", applied, &report)
}

func (s *Service) respondApplied(c *gin.Context, message string, applied settings.Applied, report *registry.RefreshReport) {
	httptransport.RespondJSON(c, http.StatusOK, MutationResponse{
		Success:           true,
		Message:           message,
		Settings:          applied.Settings,
		AvailableSettings: s.store.Available(),
		NeedsRebuild:      applied.NeedsRebuild,
		Refresh:           report,
	})
}

func (s *Service) fail(c *gin.Context, op string, err error) {
	s.logger.ErrorTag("HTTP", "settings %s failed: %v", op, err)
	httptransport.RespondError(c, http.StatusInternalServerError, errors.MessageOf(err))
}
