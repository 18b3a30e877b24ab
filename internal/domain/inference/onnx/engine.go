// Package onnx runs YOLO pose models exported to ONNX through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	ort "github.com/yalue/onnxruntime_go"

	"pose-stream-server-go/internal/domain/inference"
	"pose-stream-server-go/internal/domain/registry"
	"pose-stream-server-go/internal/utils"
)

const logTag = "Inference"

// Config controls how engines are built.
type Config struct {
	// SharedLibrary is the onnxruntime shared library; empty uses the loader default.
	SharedLibrary   string
	InputSize       int
	DownloadURL     string
	DownloadTimeout time.Duration
	InputName       string
	OutputName      string
}

func (c Config) withDefaults() Config {
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
	if c.InputName == "" {
		c.InputName = "images"
	}
	if c.OutputName == "" {
		c.OutputName = "output0"
	}
	return c
}

var (
	envMu    sync.Mutex
	envReady bool
)

func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envReady {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	envReady = true
	return nil
}

// Shutdown releases the process-wide runtime environment.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !envReady {
		return nil
	}
	envReady = false
	return ort.DestroyEnvironment()
}

// Factory builds ONNX engines and fetches missing model files.
type Factory struct {
	cfg    Config
	client *resty.Client
	logger *utils.Logger
}

func NewFactory(cfg Config, logger *utils.Logger) *Factory {
	cfg = cfg.withDefaults()
	return &Factory{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		logger: logger,
	}
}

type threadSetter interface {
	SetIntraOpNumThreads(n int) error
	SetInterOpNumThreads(n int) error
}

// setThreads applies both pool sizes and joins whatever the runtime refused.
func setThreads(opts threadSetter, intra, inter int) error {
	var errs []error
	if err := opts.SetIntraOpNumThreads(intra); err != nil {
		errs = append(errs, fmt.Errorf("intra-op threads=%d: %w", intra, err))
	}
	if err := opts.SetInterOpNumThreads(inter); err != nil {
		errs = append(errs, fmt.Errorf("inter-op threads=%d: %w", inter, err))
	}
	return errors.Join(errs...)
}

func (f *Factory) NewEngine(ctx context.Context, cfg inference.EngineConfig) (inference.Engine, error) {
	if err := f.ensureModel(ctx, cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := initEnvironment(f.cfg.SharedLibrary); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	if err := setThreads(options, runtime.NumCPU(), 1); err != nil {
		f.logger.WarnTag(logTag, "keeping runtime thread defaults: %v", err)
	}
	if err := f.appendProvider(options, cfg.Device); err != nil {
		return nil, err
	}
	if cfg.Half {
		f.logger.DebugTag(logTag, "half precision requested; float32 graph inputs are kept and the provider picks kernels")
	}

	size := int64(f.cfg.InputSize)
	anchors := anchorCount(f.cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, poseChannels, int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{f.cfg.InputName},
		[]string{f.cfg.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", cfg.ModelID, err)
	}

	f.logger.InfoTag(logTag, "onnx session created: model=%s device=%s input=%d", cfg.ModelID, cfg.Device, size)
	return &Engine{
		session: session,
		input:   input,
		output:  output,
		size:    f.cfg.InputSize,
		anchors: anchors,
	}, nil
}

func (f *Factory) appendProvider(options *ort.SessionOptions, device string) error {
	switch device {
	case registry.DeviceCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fmt.Errorf("create cuda provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return fmt.Errorf("enable cuda provider: %w", err)
		}
	case registry.DeviceMPS:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return fmt.Errorf("enable coreml provider: %w", err)
		}
	}
	return nil
}

// Engine wraps one ONNX Runtime session. The session's bound tensors are
// shared state, so Predict calls are serialized.
type Engine struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	anchors int
}

func (e *Engine) Predict(ctx context.Context, img image.Image, params inference.Params) ([]inference.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	canvas, lb := fitLetterbox(img, e.size)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("engine closed")
	}
	fillCHW(canvas, e.size, e.input.GetData())
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	return decodePose(e.output.GetData(), e.anchors, params, lb), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	return err
}
