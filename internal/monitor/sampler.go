// Copyright 2025 Matt Barlow
//
// System counter sampling

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one reading of the tracked OS counters, all in percent used.
type Sample struct {
	Taken  time.Time
	CPU    float64
	Memory float64
	Disk   float64
}

// Sampler reads the OS counters. The production implementation wraps
// gopsutil; tests substitute a canned sampler.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// GopsutilSampler reads CPU, memory, and disk usage through gopsutil.
type GopsutilSampler struct {
	diskPath string
}

// NewGopsutilSampler creates a sampler. diskPath defaults to "/".
func NewGopsutilSampler(diskPath string) *GopsutilSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &GopsutilSampler{diskPath: diskPath}
}

// Sample reads all counters. A zero interval asks gopsutil for usage
// since the previous call, which keeps the poll non-blocking.
func (s *GopsutilSampler) Sample(ctx context.Context) (Sample, error) {
	cpuPcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, fmt.Errorf("sampling cpu: %w", err)
	}
	if len(cpuPcts) == 0 {
		return Sample{}, fmt.Errorf("sampling cpu: no data")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("sampling memory: %w", err)
	}

	du, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return Sample{}, fmt.Errorf("sampling disk %s: %w", s.diskPath, err)
	}

	return Sample{
		Taken:  time.Now(),
		CPU:    cpuPcts[0],
		Memory: vm.UsedPercent,
		Disk:   du.UsedPercent,
	}, nil
}

// Uptime returns the host uptime.
func Uptime(ctx context.Context) (time.Duration, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading uptime: %w", err)
	}
	return time.Duration(secs) * time.Second, nil
}
