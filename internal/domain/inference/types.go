package inference

import (
	"context"
	"image"
)

// Params are the per-call knobs passed to an engine.
type Params struct {
	Confidence       float64
	IOU              float64
	MaxDetections    int
	ClassAgnosticNMS bool
	Verbose          bool
}

// DefaultParams mirrors the model runtime defaults used by test detections.
func DefaultParams() Params {
	return Params{
		Confidence:    0.25,
		IOU:           0.7,
		MaxDetections: 300,
	}
}

// RawDetection is one model output row. Box is x1,y1,x2,y2,conf[,pose_conf];
// each keypoint is x,y,conf.
type RawDetection struct {
	Box       []float32
	Keypoints [][3]float32
}

// Engine is a loaded pose model.
type Engine interface {
	Predict(ctx context.Context, img image.Image, params Params) ([]RawDetection, error)
	Close() error
}

// EngineConfig describes the engine to build.
type EngineConfig struct {
	ModelID             string
	ModelPath           string
	Device              string
	Half                bool
	UseAlternateBackend bool
}

// EngineFactory builds engines; Rebuild calls it with the lock held.
type EngineFactory interface {
	NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(ctx context.Context, cfg EngineConfig) (Engine, error)

func (f EngineFactoryFunc) NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error) {
	return f(ctx, cfg)
}

type BBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
}

type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

type Detection struct {
	ID             int        `json:"id"`
	BBox           BBox       `json:"bbox"`
	Keypoints      []Keypoint `json:"keypoints"`
	PoseConfidence float64    `json:"pose_confidence"`
}

// Result is the successful outcome of one detection call.
type Result struct {
	Detections []Detection `json:"detections"`
	Count      int         `json:"count"`
	Test       bool        `json:"test,omitempty"`
}
