package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	imagepkg "pose-stream-server-go/internal/domain/image"
	"pose-stream-server-go/internal/domain/settings"
	platformerrors "pose-stream-server-go/internal/platform/errors"
	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

const logTag = "Inference"

// Decoder turns raw frame bytes into an image.
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (*imagepkg.Output, error)
}

// SettingsSource supplies the parameters for each Run.
type SettingsSource interface {
	Current() settings.Settings
}

// Options wires a Session. Factory, Decoder and Settings are required.
type Options struct {
	Factory   EngineFactory
	Decoder   Decoder
	Settings  SettingsSource
	ModelPath func(modelID string) string
	Logger    *utils.Logger
	Metrics   *observability.Metrics
}

// Session owns the single engine handle. Run holds the read lock for the
// whole Predict call and Rebuild takes the write lock, so a rebuild waits for
// in-flight runs and blocks new ones until the new engine is in place.
type Session struct {
	factory   EngineFactory
	decoder   Decoder
	settings  SettingsSource
	modelPath func(string) string
	logger    *utils.Logger
	metrics   *observability.Metrics

	mu     sync.RWMutex
	engine Engine
	spec   settings.EngineSpec
}

func NewSession(opts Options) *Session {
	modelPath := opts.ModelPath
	if modelPath == nil {
		modelPath = func(id string) string { return id }
	}
	return &Session{
		factory:   opts.Factory,
		decoder:   opts.Decoder,
		settings:  opts.Settings,
		modelPath: modelPath,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Run detects poses in raw using the current settings.
func (s *Session) Run(ctx context.Context, raw []byte) (*Result, error) {
	cur := s.settings.Current()
	return s.run(ctx, raw, Params{
		Confidence:       cur.Confidence,
		IOU:              cur.IOUThreshold,
		MaxDetections:    cur.MaxDetections,
		ClassAgnosticNMS: cur.ClassAgnosticNMS,
		Verbose:          cur.Verbose,
	}, false)
}

// RunDefault detects with the runtime's default parameters and flags the
// result as a test detection.
func (s *Session) RunDefault(ctx context.Context, raw []byte) (*Result, error) {
	return s.run(ctx, raw, DefaultParams(), true)
}

func (s *Session) run(ctx context.Context, raw []byte, params Params, test bool) (result *Result, err error) {
	ctx, end := observability.StartSpan(ctx, "inference", "run")
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoded, decodeErr := s.decoder.Decode(ctx, raw)
	if decodeErr != nil {
		s.logger.DebugTag(logTag, "frame decode failed: %v", decodeErr)
		return nil, platformerrors.Wrap(platformerrors.KindDecode, "inference.decode", decodeMessage,
			fmt.Errorf("%w: %v", ErrDecode, decodeErr))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.engine == nil {
		return nil, platformerrors.Wrap(platformerrors.KindEngine, "inference.run", "Model not loaded", ErrEngineUnavailable)
	}

	raws, predictErr := s.engine.Predict(ctx, decoded.Image, params)
	if predictErr != nil {
		s.logger.ErrorTag(logTag, "pose detection failed: %v", predictErr)
		return nil, platformerrors.Wrap(platformerrors.KindEngine, "inference.predict", predictErr.Error(), predictErr)
	}

	detections := Transform(raws)
	if params.Verbose || test {
		s.logger.InfoTag(logTag, "detected %d poses (%dx%d, test=%t)",
			len(detections), decoded.Image.Bounds().Dx(), decoded.Image.Bounds().Dy(), test)
	}
	return &Result{Detections: detections, Count: len(detections), Test: test}, nil
}

// Rebuild replaces the engine with one built for spec. On failure the
// session holds no engine until a later Rebuild succeeds.
func (s *Session) Rebuild(ctx context.Context, spec settings.EngineSpec) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.WarnTag(logTag, "closing previous engine: %v", err)
		}
		s.engine = nil
	}

	engine, err := s.factory.NewEngine(ctx, EngineConfig{
		ModelID:             spec.Model,
		ModelPath:           s.modelPath(spec.Model),
		Device:              spec.Device,
		Half:                spec.Half,
		UseAlternateBackend: spec.UseAlternateBackend,
	})
	s.metrics.ObserveRebuild(err)
	if err != nil {
		s.logger.ErrorTag(logTag, "engine rebuild failed for model=%s device=%s: %v", spec.Model, spec.Device, err)
		return platformerrors.Wrap(platformerrors.KindEngine, "inference.rebuild", "engine rebuild failed",
			fmt.Errorf("%w: %v", ErrEngineRebuild, err))
	}

	s.engine = engine
	s.spec = spec
	s.logger.InfoTag(logTag, "engine ready: model=%s device=%s half=%t (%s)",
		spec.Model, spec.Device, spec.Half, time.Since(start).Round(time.Millisecond))
	return nil
}

// Ready reports whether an engine is loaded.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine != nil
}

// Loaded reports which model and device the engine was built for.
func (s *Session) Loaded() (settings.EngineSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec, s.engine != nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}
