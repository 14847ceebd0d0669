package util

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// SystemInfo contains information about the host system.
type SystemInfo struct {
	Hostname       string
	NumCPU         int
	PhysicalCores  int
	OS             string
	Arch           string
	AvailableBytes uint64
}

// GetSystemInfo collects system information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Hostname:       hostname,
		NumCPU:         runtime.NumCPU(),
		PhysicalCores:  PhysicalCores(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		AvailableBytes: AvailableMemoryBytes(),
	}
}

// MemoryBudget describes whether a decoded frame set fits in memory.
type MemoryBudget struct {
	Required uint64
	Usable   uint64
	Known    bool
}

// Fits reports whether the required bytes fit in the usable budget.
// An unknown budget always fits.
func (b MemoryBudget) Fits() bool {
	return !b.Known || b.Required <= b.Usable
}

// FrameMemoryBudget estimates the memory needed to hold frames of
// frameBytes each against memFraction of available memory.
func FrameMemoryBudget(frameBytes uint64, frames int, memFraction float64) MemoryBudget {
	required := frameBytes * uint64(max(frames, 0))
	available := AvailableMemoryBytes()
	if available == 0 {
		return MemoryBudget{Required: required}
	}
	return MemoryBudget{
		Required: required,
		Usable:   uint64(float64(available) * memFraction),
		Known:    true,
	}
}

// LogicalCores returns the number of logical CPU cores (includes hyperthreads).
func LogicalCores() int {
	return runtime.NumCPU()
}

// PhysicalCores returns the number of physical CPU cores.
// Falls back to LogicalCores()/2 if detection fails.
func PhysicalCores() int {
	switch runtime.GOOS {
	case "linux":
		if cores := physicalCoresLinux(); cores > 0 {
			return cores
		}
	case "darwin":
		if cores := physicalCoresDarwin(); cores > 0 {
			return cores
		}
	}
	logical := LogicalCores()
	if logical > 1 {
		return logical / 2
	}
	return 1
}

// physicalCoresLinux counts unique package:core pairs in sysfs topology.
func physicalCoresLinux() int {
	cpuDir := "/sys/devices/system/cpu"
	entries, err := os.ReadDir(cpuDir)
	if err != nil {
		return 0
	}

	coreIDs := make(map[string]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "cpu") || len(name) == 3 {
			continue
		}
		if _, err := strconv.Atoi(name[3:]); err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(cpuDir, name, "topology", "core_id"))
		if err != nil {
			continue
		}
		key := strings.TrimSpace(string(data))
		if pkg, err := os.ReadFile(filepath.Join(cpuDir, name, "topology", "physical_package_id")); err == nil {
			key = strings.TrimSpace(string(pkg)) + ":" + key
		}
		coreIDs[key] = struct{}{}
	}

	return len(coreIDs)
}

func physicalCoresDarwin() int {
	out, err := exec.Command("sysctl", "-n", "hw.physicalcpu").Output()
	if err != nil {
		return 0
	}
	cores, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || cores <= 0 {
		return 0
	}
	return cores
}
