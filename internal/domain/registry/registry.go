// Package registry enumerates usable devices and catalog models.
package registry

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pose-stream-server-go/internal/utils"
)

const logTag = "Registry"

// Config locates model files: <ModelsDir>/<id><ModelExt>.
type Config struct {
	ModelsDir string
	ModelExt  string
}

// Registry holds the latest device and model scan. Safe for concurrent use.
type Registry struct {
	cfg    Config
	prober DeviceProber
	logger *utils.Logger
	stat   func(string) (os.FileInfo, error)

	mu         sync.RWMutex
	devices    []DeviceDescriptor
	downloaded map[string]float64 // id -> literal size in MB
}

// New scans devices and models once before returning.
func New(cfg Config, prober DeviceProber, logger *utils.Logger) *Registry {
	if cfg.ModelExt == "" {
		cfg.ModelExt = ".onnx"
	}
	if prober == nil {
		prober = NewSystemProber()
	}
	r := &Registry{
		cfg:    cfg,
		prober: prober,
		logger: logger,
		stat:   os.Stat,
	}
	r.devices = r.DetectDevices()
	r.downloaded = r.scanModels()
	return r
}

// DetectDevices probes the host; cpu is always first.
func (r *Registry) DetectDevices() []DeviceDescriptor {
	devices := []DeviceDescriptor{r.prober.CPU()}
	devices[0].ID = DeviceCPU
	for _, d := range r.prober.Accelerators() {
		if d.ID == DeviceCPU || d.ID == "" {
			continue
		}
		devices = append(devices, d)
	}
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	r.logger.InfoTag(logTag, "available devices: %s", strings.Join(ids, ","))
	return devices
}

// DetectDownloadedModels probes the models directory for catalog files.
func (r *Registry) DetectDownloadedModels() []string {
	return sortedCatalogIDs(r.scanModels())
}

func (r *Registry) scanModels() map[string]float64 {
	found := make(map[string]float64)
	for _, e := range catalog {
		path := r.ModelPath(e.id)
		info, err := r.stat(path)
		if err != nil || info.IsDir() {
			r.logger.DebugTag(logTag, "model not found: %s (fetched on first use)", path)
			continue
		}
		found[e.id] = math.Round(float64(info.Size())/(1024*1024)*10) / 10
	}
	return found
}

// Refresh rescans devices and models and reports the differences.
func (r *Registry) Refresh() RefreshReport {
	devices := r.DetectDevices()
	downloaded := r.scanModels()

	r.mu.Lock()
	oldDevices := r.devices
	oldModels := r.downloaded
	r.devices = devices
	r.downloaded = downloaded
	r.mu.Unlock()

	report := RefreshReport{
		AddedModels:   diffKeys(downloaded, oldModels),
		RemovedModels: diffKeys(oldModels, downloaded),
	}
	report.AddedDevices, report.RemovedDevices = diffDevices(oldDevices, devices)

	r.logger.InfoTag(logTag, "refresh completed, downloaded models: %s",
		strings.Join(sortedCatalogIDs(downloaded), ","))
	if len(report.AddedModels) > 0 {
		r.logger.InfoTag(logTag, "new models detected: %s", strings.Join(report.AddedModels, ","))
	}
	if len(report.RemovedModels) > 0 {
		r.logger.InfoTag(logTag, "models removed: %s", strings.Join(report.RemovedModels, ","))
	}
	if len(report.AddedDevices) > 0 || len(report.RemovedDevices) > 0 {
		r.logger.InfoTag(logTag, "devices changed: +%v -%v", report.AddedDevices, report.RemovedDevices)
	}
	return report
}

// Devices returns a copy of the current device list in preference order.
func (r *Registry) Devices() []DeviceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeviceDescriptor, len(r.devices))
	copy(out, r.devices)
	return out
}

// Device looks up a live device.
func (r *Registry) Device(id string) (DeviceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceDescriptor{}, false
}

// Models returns every catalog model with its current download state.
func (r *Registry) Models() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelDescriptor, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, r.describe(e))
	}
	return out
}

// Model looks up one catalog model.
func (r *Registry) Model(id string) (ModelDescriptor, bool) {
	e, ok := lookupCatalog(id)
	if !ok {
		return ModelDescriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.describe(e), true
}

func (r *Registry) describe(e catalogEntry) ModelDescriptor {
	size, downloaded := r.downloaded[e.id]
	if !downloaded {
		size = e.estimatedMB
	}
	return ModelDescriptor{
		ID:          e.id,
		Name:        strings.ToUpper(e.id),
		Downloaded:  downloaded,
		SizeMB:      size,
		Description: e.description,
		Performance: e.performance,
	}
}

// DownloadedModels lists downloaded catalog ids, smallest first.
func (r *Registry) DownloadedModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCatalogIDs(r.downloaded)
}

// RecommendedDevice is the first non-cpu device flagged recommended, else cpu.
func (r *Registry) RecommendedDevice() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.ID != DeviceCPU && d.Recommended {
			return d.ID
		}
	}
	return DeviceCPU
}

// RecommendedModel is the smallest downloaded model, else the first in catalog.
func (r *Registry) RecommendedModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range catalog {
		if _, ok := r.downloaded[e.id]; ok {
			return e.id
		}
	}
	return catalog[0].id
}

// ValidateDevice requires id to be in the live device set.
func (r *Registry) ValidateDevice(id string) (bool, string) {
	if _, ok := r.Device(id); ok {
		return true, ""
	}
	ids := make([]string, 0)
	for _, d := range r.Devices() {
		ids = append(ids, d.ID)
	}
	return false, fmt.Sprintf("device %q is not available, available devices: %v", id, ids)
}

// ValidateModel requires id to be in the catalog; it need not be downloaded.
func (r *Registry) ValidateModel(id string) (bool, string) {
	if _, ok := lookupCatalog(id); ok {
		return true, ""
	}
	return false, fmt.Sprintf("model %q is not a valid pose model, valid models: %v", id, Catalog())
}

// ModelFileName is the on-disk name of a catalog model.
func (r *Registry) ModelFileName(id string) string {
	return id + r.cfg.ModelExt
}

// ModelPath is where the engine loads id from.
func (r *Registry) ModelPath(id string) string {
	return filepath.Join(r.cfg.ModelsDir, r.ModelFileName(id))
}

func sortedCatalogIDs(set map[string]float64) []string {
	out := make([]string, 0, len(set))
	for _, e := range catalog {
		if _, ok := set[e.id]; ok {
			out = append(out, e.id)
		}
	}
	return out
}

func diffKeys(a, b map[string]float64) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func diffDevices(before, after []DeviceDescriptor) (added, removed []string) {
	toSet := func(ds []DeviceDescriptor) map[string]float64 {
		m := make(map[string]float64, len(ds))
		for _, d := range ds {
			m[d.ID] = 0
		}
		return m
	}
	b, a := toSet(before), toSet(after)
	return diffKeys(a, b), diffKeys(b, a)
}
