package detect

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	imagepkg "pose-stream-server-go/internal/domain/image"
	"pose-stream-server-go/internal/domain/inference"
	"pose-stream-server-go/internal/platform/errors"
	httptransport "pose-stream-server-go/internal/transport/http"
	"pose-stream-server-go/internal/utils"
)

const formField = "file"

// Detector is the inference surface used by the upload endpoints.
type Detector interface {
	Run(ctx context.Context, raw []byte) (*inference.Result, error)
	RunDefault(ctx context.Context, raw []byte) (*inference.Result, error)
}

// Reader bounds how much of an upload is read into memory and checks the
// bytes against the format the part declared.
type Reader interface {
	ReadLimited(r io.Reader, hint string) ([]byte, error)
}

// Response is the body of a successful detection.
type Response struct {
	Success bool `json:"success"`
	*inference.Result
}

// Service 单张图片姿态检测的HTTP传输层实现
type Service struct {
	logger   *utils.Logger
	detector Detector
	reader   Reader
	maxBytes int64
}

// NewService validates dependencies. maxBytes caps the upload body; zero keeps gin's default.
func NewService(detector Detector, reader Reader, maxBytes int64, logger *utils.Logger) (*Service, error) {
	if detector == nil {
		return nil, errors.New(errors.KindConfig, "detect.new", "detector is required")
	}
	if reader == nil {
		return nil, errors.New(errors.KindConfig, "detect.new", "image reader is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "detect.new", "logger is required")
	}

	return &Service{
		logger:   logger,
		detector: detector,
		reader:   reader,
		maxBytes: maxBytes,
	}, nil
}

// Register 注册检测相关的HTTP路由
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.POST("/detect", s.handleDetect)
	router.POST("/test", s.handleTest)

	s.logger.InfoTag("HTTP", "detect routes registered")
	return nil
}

// handleDetect 处理图片检测请求
// @Summary Detect poses in an uploaded image
// @Description Runs pose detection with the current settings.
// @Tags Detection
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "image file"
// @Success 200 {object} Response
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /detect [post]
func (s *Service) handleDetect(c *gin.Context) {
	s.serve(c, true, s.detector.Run)
}

// handleTest runs detection with fixed default parameters.
// @Summary Test detection with default parameters
// @Tags Detection
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "image file"
// @Success 200 {object} Response
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /test [post]
func (s *Service) handleTest(c *gin.Context) {
	s.serve(c, false, s.detector.RunDefault)
}

func (s *Service) serve(
	c *gin.Context,
	requireImage bool,
	run func(context.Context, []byte) (*inference.Result, error),
) {
	if s.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)
	}

	header, err := c.FormFile(formField)
	if err != nil {
		s.logger.WarnTag("HTTP", "upload rejected: %v", err)
		httptransport.RespondError(c, http.StatusBadRequest, "file is required")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if requireImage && !strings.HasPrefix(contentType, "image/") {
		httptransport.RespondError(c, http.StatusBadRequest, "File must be an image")
		return
	}

	file, err := header.Open()
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	raw, err := s.reader.ReadLimited(file, imagepkg.FormatFromContentType(contentType))
	if err != nil {
		s.logger.WarnTag("HTTP", "upload %s rejected: %v", header.Filename, err)
		httptransport.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := run(c.Request.Context(), raw)
	if err != nil {
		s.logger.ErrorTag("HTTP", "detection failed for %s: %v", header.Filename, err)
		httptransport.RespondError(c, http.StatusInternalServerError, errors.MessageOf(err))
		return
	}

	httptransport.RespondJSON(c, http.StatusOK, Response{Success: true, Result: result})
}
