package settings

import (
	"pose-stream-server-go/internal/domain/registry"
)

// FieldOption describes the constraints of one settings field.
type FieldOption struct {
	Type        string      `json:"type"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Step        *float64    `json:"step,omitempty"`
	Default     interface{} `json:"default"`
	Options     []string    `json:"options,omitempty"`
	Available   *bool       `json:"available,omitempty"`
	Description string      `json:"description"`
}

// AvailableSettings is the catalog of fields plus model/device metadata.
type AvailableSettings struct {
	Model            FieldOption `json:"model"`
	Device           FieldOption `json:"device"`
	Confidence       FieldOption `json:"confidence"`
	IOUThreshold     FieldOption `json:"iou_threshold"`
	MaxDetections    FieldOption `json:"max_det"`
	Verbose          FieldOption `json:"verbose"`
	ClassAgnosticNMS FieldOption `json:"agnostic_nms"`
	HalfPrecision    FieldOption `json:"half"`
	UseAltBackend    FieldOption `json:"dnn"`

	DownloadedModels []string                             `json:"downloaded_models"`
	ModelInfo        map[string]registry.ModelDescriptor  `json:"model_info"`
	DeviceInfo       map[string]registry.DeviceDescriptor `json:"device_info"`
}

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

// Available reports field constraints. Model and device defaults follow the
// registry's current recommendation; half availability follows the current
// device.
func (s *Store) Available() AvailableSettings {
	current := s.Current()

	devices := s.reg.Devices()
	deviceIDs := make([]string, 0, len(devices))
	deviceInfo := make(map[string]registry.DeviceDescriptor, len(devices))
	for _, d := range devices {
		deviceIDs = append(deviceIDs, d.ID)
		deviceInfo[d.ID] = d
	}

	models := s.reg.Models()
	modelIDs := make([]string, 0, len(models))
	downloaded := make([]string, 0, len(models))
	modelInfo := make(map[string]registry.ModelDescriptor, len(models))
	for _, m := range models {
		modelIDs = append(modelIDs, m.ID)
		modelInfo[m.ID] = m
		if m.Downloaded {
			downloaded = append(downloaded, m.ID)
		}
	}

	return AvailableSettings{
		Model: FieldOption{
			Type:        "select",
			Default:     s.reg.RecommendedModel(),
			Options:     modelIDs,
			Description: "Pose model variant; models not on disk are fetched on first use",
		},
		Device: FieldOption{
			Type:        "select",
			Default:     s.reg.RecommendedDevice(),
			Options:     deviceIDs,
			Description: "Compute device for inference",
		},
		Confidence: FieldOption{
			Type: "float", Min: f64(0), Max: f64(1), Step: f64(0.05),
			Default:     OptimalConfidence,
			Description: "Minimum detection confidence",
		},
		IOUThreshold: FieldOption{
			Type: "float", Min: f64(0), Max: f64(1), Step: f64(0.05),
			Default:     OptimalIOUThreshold,
			Description: "IoU threshold for non-maximum suppression",
		},
		MaxDetections: FieldOption{
			Type: "int", Min: f64(MinMaxDetections), Max: f64(MaxMaxDetections), Step: f64(1),
			Default:     OptimalMaxDetections,
			Description: "Maximum number of poses per frame",
		},
		Verbose: FieldOption{
			Type:        "bool",
			Default:     false,
			Description: "Verbose engine logging",
		},
		ClassAgnosticNMS: FieldOption{
			Type:        "bool",
			Default:     false,
			Description: "Class-agnostic non-maximum suppression",
		},
		HalfPrecision: FieldOption{
			Type:        "bool",
			Default:     s.deviceSupportsHalf(current.Device),
			Available:   boolp(s.deviceSupportsHalf(current.Device)),
			Description: "FP16 inference, only on devices that support it",
		},
		UseAltBackend: FieldOption{
			Type:        "bool",
			Default:     true,
			Description: "Use the alternate inference backend when available",
		},
		DownloadedModels: downloaded,
		ModelInfo:        modelInfo,
		DeviceInfo:       deviceInfo,
	}
}
