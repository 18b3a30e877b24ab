package registry

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DeviceProber reports the host's compute backends.
type DeviceProber interface {
	CPU() DeviceDescriptor
	// Accelerators returns non-cpu devices in preference order.
	Accelerators() []DeviceDescriptor
}

// SystemProber inspects the local host.
type SystemProber struct {
	lookPath func(string) (string, error)
	glob     func(string) ([]string, error)
	goos     string
	goarch   string
}

// NewSystemProber probes with the real filesystem, PATH and runtime.
func NewSystemProber() *SystemProber {
	return &SystemProber{
		lookPath: exec.LookPath,
		glob:     filepath.Glob,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
}

func (p *SystemProber) CPU() DeviceDescriptor {
	d := DeviceDescriptor{
		ID:            DeviceCPU,
		Name:          "CPU",
		Description:   "Central Processing Unit",
		HalfPrecision: false,
		Recommended:   false,
		Memory:        "System RAM",
		Performance:   "Low",
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		cores, _ := cpu.Counts(true)
		d.Description = fmt.Sprintf("Central Processing Unit (%s, %d threads)", infos[0].ModelName, cores)
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		d.Memory = fmt.Sprintf("System RAM (%.1f GB)", float64(vm.Total)/(1<<30))
	}
	return d
}

func (p *SystemProber) Accelerators() []DeviceDescriptor {
	var out []DeviceDescriptor
	if p.hasCUDA() {
		out = append(out, DeviceDescriptor{
			ID:            DeviceCUDA,
			Name:          "CUDA GPU",
			Description:   "NVIDIA GPU with CUDA support",
			HalfPrecision: true,
			Recommended:   true,
			Memory:        "Unknown",
			Performance:   "High",
		})
	}
	if p.goos == "darwin" && p.goarch == "arm64" {
		out = append(out, DeviceDescriptor{
			ID:            DeviceMPS,
			Name:          "Apple Silicon GPU",
			Description:   "Apple Silicon GPU with Metal Performance Shaders",
			HalfPrecision: true,
			Recommended:   true,
			Memory:        "Unified Memory",
			Performance:   "High",
		})
	}
	return out
}

func (p *SystemProber) hasCUDA() bool {
	if nodes, err := p.glob("/dev/nvidia[0-9]*"); err == nil && len(nodes) > 0 {
		return true
	}
	_, err := p.lookPath("nvidia-smi")
	return err == nil
}
