// Package inferencetest provides engine fakes and fixtures for tests.
package inferencetest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	"pose-stream-server-go/internal/domain/inference"
)

// Engine returns a fixed set of detections and records every call.
type Engine struct {
	Detections []inference.RawDetection
	Err        error
	// Gate, when set, blocks Predict until it is closed or receives.
	Gate chan struct{}
	// Entered receives once per Predict call before Gate is awaited.
	Entered chan struct{}

	mu     sync.Mutex
	params []inference.Params
	closed bool
}

func (e *Engine) Predict(ctx context.Context, _ image.Image, params inference.Params) ([]inference.RawDetection, error) {
	e.mu.Lock()
	e.params = append(e.params, params)
	e.mu.Unlock()

	if e.Entered != nil {
		e.Entered <- struct{}{}
	}
	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Detections, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Params returns the parameters of every Predict call so far.
func (e *Engine) Params() []inference.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]inference.Params(nil), e.params...)
}

// Factory hands out engines in order and records the configs it was given.
type Factory struct {
	mu      sync.Mutex
	Engines []inference.Engine
	Err     error
	Configs []inference.EngineConfig
}

func (f *Factory) NewEngine(_ context.Context, cfg inference.EngineConfig) (inference.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Configs = append(f.Configs, cfg)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Engines) == 0 {
		return &Engine{}, nil
	}
	next := f.Engines[0]
	if len(f.Engines) > 1 {
		f.Engines = f.Engines[1:]
	}
	return next, nil
}

// Calls returns how many engines were requested.
func (f *Factory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Configs)
}

// PNG encodes a solid w x h image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Person is one detection row with a full 17-point skeleton.
func Person(conf float32) inference.RawDetection {
	kpts := make([][3]float32, 17)
	for i := range kpts {
		kpts[i] = [3]float32{float32(i), float32(i * 2), 0.9}
	}
	return inference.RawDetection{
		Box:       []float32{10, 20, 110, 220, conf, 0},
		Keypoints: kpts,
	}
}
