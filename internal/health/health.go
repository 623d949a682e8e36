// Package health gathers process and host metrics for the stats
// surface.
package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var processStart = time.Now()

type Snapshot struct {
	Hostname string
	OS       string
	Uptime   time.Duration

	CPUUsage float64
	CPUCores int

	TotalMemory   uint64
	UsedMemory    uint64
	MemoryPercent float64

	GoVersion  string
	Goroutines int
	HeapAlloc  uint64
	NumGC      uint32

	ProcessUptime time.Duration
}

// Gather collects a snapshot. Host-level probes that fail leave their
// fields zeroed; the runtime numbers are always present.
func Gather() *Snapshot {
	s := &Snapshot{
		CPUCores:      runtime.NumCPU(),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		ProcessUptime: time.Since(processStart),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAlloc = ms.HeapAlloc
	s.NumGC = ms.NumGC

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.OS = info.OS
		s.Uptime = time.Duration(info.Uptime) * time.Second
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemory = vm.Total
		s.UsedMemory = vm.Used
		s.MemoryPercent = vm.UsedPercent
	}

	return s
}
