package registry

// Device identifiers. cpu is always present.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
)

// DeviceDescriptor describes one compute backend the engine may run on.
type DeviceDescriptor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	HalfPrecision bool   `json:"half_precision"`
	Recommended   bool   `json:"recommended"`
	Memory        string `json:"memory"`
	Performance   string `json:"performance"`
}

// ModelDescriptor describes one catalog model and its download state.
type ModelDescriptor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Downloaded  bool    `json:"downloaded"`
	SizeMB      float64 `json:"size_mb"`
	Description string  `json:"description"`
	Performance string  `json:"performance"`
}

// RefreshReport lists what changed between two scans.
type RefreshReport struct {
	AddedModels    []string `json:"added_models"`
	RemovedModels  []string `json:"removed_models"`
	AddedDevices   []string `json:"added_devices"`
	RemovedDevices []string `json:"removed_devices"`
}

// Changed reports whether the scan found any difference.
func (r RefreshReport) Changed() bool {
	return len(r.AddedModels)+len(r.RemovedModels)+len(r.AddedDevices)+len(r.RemovedDevices) > 0
}

type catalogEntry struct {
	id          string
	estimatedMB float64
	description string
	performance string
}

// catalog is ordered smallest first; recommendation walks it in this order.
var catalog = []catalogEntry{
	{"yolo11n-pose", 6.0, "Nano model - Fastest, smallest, lowest accuracy", "Fastest"},
	{"yolo11s-pose", 19.0, "Small model - Good balance of speed and accuracy", "Fast"},
	{"yolo11m-pose", 52.0, "Medium model - Better accuracy, moderate speed", "Medium"},
	{"yolo11l-pose", 87.0, "Large model - High accuracy, slower inference", "Slow"},
	{"yolo11x-pose", 136.0, "Extra Large model - Highest accuracy, slowest inference", "Slowest"},
}

// Catalog returns the fixed model ids, smallest first.
func Catalog() []string {
	ids := make([]string, len(catalog))
	for i, e := range catalog {
		ids[i] = e.id
	}
	return ids
}

func lookupCatalog(id string) (catalogEntry, bool) {
	for _, e := range catalog {
		if e.id == id {
			return e, true
		}
	}
	return catalogEntry{}, false
}
