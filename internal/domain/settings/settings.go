// Package settings owns the active inference configuration.
package settings

import (
	"context"
	"errors"

	"pose-stream-server-go/internal/domain/registry"
)

// Field fallbacks applied when an update carries an invalid value.
const (
	FallbackConfidence    = 0.25
	FallbackIOUThreshold  = 0.45
	FallbackMaxDetections = 300

	MinMaxDetections = 1
	MaxMaxDetections = 1000
)

// Values used by Reset and for the initial configuration.
const (
	OptimalConfidence    = 0.75
	OptimalIOUThreshold  = 0.45
	OptimalMaxDetections = 5
)

// ErrInvalidValue marks a rejected field value. It is logged, never returned.
var ErrInvalidValue = errors.New("invalid setting value")

// Settings is the engine configuration shared by every connection.
type Settings struct {
	Model               string  `json:"model"`
	Device              string  `json:"device"`
	Confidence          float64 `json:"confidence"`
	IOUThreshold        float64 `json:"iou_threshold"`
	MaxDetections       int     `json:"max_det"`
	Verbose             bool    `json:"verbose"`
	ClassAgnosticNMS    bool    `json:"agnostic_nms"`
	HalfPrecision       bool    `json:"half"`
	UseAlternateBackend bool    `json:"dnn"`
}

// Applied is the outcome of Update or Reset.
type Applied struct {
	Settings     Settings `json:"settings"`
	NeedsRebuild bool     `json:"needs_rebuild"`
}

// EngineSpec is what an engine is built from.
type EngineSpec struct {
	Model               string
	Device              string
	Half                bool
	UseAlternateBackend bool
}

// Rebuilder reconstructs the inference engine.
type Rebuilder interface {
	Rebuild(ctx context.Context, spec EngineSpec) error
}

// Persister stores the applied settings across restarts.
type Persister interface {
	Load(ctx context.Context) (Settings, bool, error)
	Save(ctx context.Context, s Settings) error
}

// Registry is the part of the device/model registry the store depends on.
type Registry interface {
	Devices() []registry.DeviceDescriptor
	Device(id string) (registry.DeviceDescriptor, bool)
	Models() []registry.ModelDescriptor
	RecommendedDevice() string
	RecommendedModel() string
	ValidateDevice(id string) (bool, string)
	ValidateModel(id string) (bool, string)
	Refresh() registry.RefreshReport
}

// Optimal derives the recommended configuration from the registry.
func Optimal(reg Registry) Settings {
	device := reg.RecommendedDevice()
	half := false
	if d, ok := reg.Device(device); ok {
		half = d.HalfPrecision
	}
	return Settings{
		Model:               reg.RecommendedModel(),
		Device:              device,
		Confidence:          OptimalConfidence,
		IOUThreshold:        OptimalIOUThreshold,
		MaxDetections:       OptimalMaxDetections,
		Verbose:             false,
		ClassAgnosticNMS:    false,
		HalfPrecision:       half,
		UseAlternateBackend: true,
	}
}
