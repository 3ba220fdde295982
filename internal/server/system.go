// Copyright 2025 Matt Barlow
//
// System health, performance, and optimization tool handlers

package server

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mbarlow/macbridge/internal/gateway"
	"github.com/mbarlow/macbridge/internal/monitor"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

type healthCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// handleHealthCheck handles the health_check tool
func (s *MCPServer) handleHealthCheck(call *ToolCall) (*ToolResult, error) {
	const op = "health_check"
	ctx, cancel := s.callContext()
	defer cancel()

	start := time.Now()
	checks := make([]healthCheck, 0, 3)
	overall := statusOK
	degrade := func(to string) {
		if overall == statusOK || to == statusFail {
			overall = to
		}
	}

	// Script executor round-trip.
	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   `return "pong"`,
	})
	switch {
	case err != nil:
		checks = append(checks, healthCheck{Name: "script_executor", Status: statusFail, Detail: err.Error()})
		degrade(statusFail)
	case res.ExitCode != 0 || res.Stdout != "pong":
		checks = append(checks, healthCheck{Name: "script_executor", Status: statusDegraded,
			Detail: fmt.Sprintf("unexpected output %q (exit %d)", res.Stdout, res.ExitCode)})
		degrade(statusDegraded)
	default:
		checks = append(checks, healthCheck{Name: "script_executor", Status: statusOK,
			Detail: fmt.Sprintf("round trip in %s", res.Duration.Round(time.Millisecond))})
	}

	// Metric sampling.
	if s.sampler != nil {
		if sample, err := s.sampler.Sample(ctx); err != nil {
			checks = append(checks, healthCheck{Name: "metrics", Status: statusDegraded, Detail: err.Error()})
			degrade(statusDegraded)
		} else {
			checks = append(checks, healthCheck{Name: "metrics", Status: statusOK,
				Detail: fmt.Sprintf("cpu %.1f%% mem %.1f%% disk %.1f%%", sample.CPU, sample.Memory, sample.Disk)})
		}
	}

	// Monitoring loop.
	if s.monitor != nil {
		status := statusOK
		detail := "running"
		running, since, lastErr := s.monitor.Running()
		switch {
		case !running:
			status = statusDegraded
			detail = "not running"
			degrade(statusDegraded)
		case lastErr != nil:
			status = statusDegraded
			detail = fmt.Sprintf("last sample failed: %v", lastErr)
			degrade(statusDegraded)
		case len(s.monitor.ActiveAlerts()) > 0:
			status = statusDegraded
			detail = fmt.Sprintf("%d active alerts", len(s.monitor.ActiveAlerts()))
			degrade(statusDegraded)
		default:
			detail = fmt.Sprintf("running since %s", since.Format(time.RFC3339))
		}
		checks = append(checks, healthCheck{Name: "monitor", Status: status, Detail: detail})
	}

	data := map[string]any{
		"status": overall,
		"checks": checks,
	}
	if up, err := monitor.Uptime(ctx); err == nil {
		data["uptime_seconds"] = uint64(up.Seconds())
	}

	return successResult(op, time.Since(start), fmt.Sprintf("health: %s", overall), data), nil
}

// handleSystemInfo handles the system_info tool
func (s *MCPServer) handleSystemInfo(call *ToolCall) (*ToolResult, error) {
	const op = "system_info"
	ctx, cancel := s.callContext()
	defer cancel()

	start := time.Now()
	data := map[string]any{
		"go_arch": runtime.GOARCH,
		"cpus":    runtime.NumCPU(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		data["hostname"] = info.Hostname
		data["os"] = info.OS
		data["platform"] = info.Platform
		data["platform_version"] = info.PlatformVersion
		data["kernel_version"] = info.KernelVersion
		data["uptime_seconds"] = info.Uptime
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		data["cpu_model"] = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		data["memory_total_bytes"] = vm.Total
		data["memory_used_percent"] = vm.UsedPercent
	}

	return successResult(op, time.Since(start), "system information", data), nil
}

// handlePerformanceReport handles the performance_report tool
func (s *MCPServer) handlePerformanceReport(call *ToolCall) (*ToolResult, error) {
	const op = "performance_report"
	start := time.Now()

	if s.monitor == nil {
		return failureResult(op, ErrCodeMonitorDisabled, "performance monitoring is disabled"), nil
	}

	stats := s.monitor.AllStats()
	if len(stats) == 0 || stats[0].Count == 0 {
		return failureResult(op, ErrCodeNoSamples, "no samples collected yet"), nil
	}

	data := map[string]any{
		"metrics":       stats,
		"thresholds":    s.monitor.Thresholds(),
		"active_alerts": s.monitor.ActiveAlerts(),
		"recent_alerts": s.monitor.RecentAlerts(),
	}
	return successResult(op, time.Since(start),
		fmt.Sprintf("report over %d samples", stats[0].Count), data), nil
}

// handleSetThresholds handles the set_thresholds tool
func (s *MCPServer) handleSetThresholds(call *ToolCall) (*ToolResult, error) {
	const op = "set_thresholds"
	start := time.Now()

	if s.monitor == nil {
		return failureResult(op, ErrCodeMonitorDisabled, "performance monitoring is disabled"), nil
	}

	var params struct {
		CPU    *float64 `json:"cpu"`
		Memory *float64 `json:"memory"`
		Disk   *float64 `json:"disk"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.CPU == nil && params.Memory == nil && params.Disk == nil {
		return failureResult(op, ErrCodeMissingParam, "at least one threshold is required"), nil
	}

	th := s.monitor.Thresholds()
	for _, f := range []struct {
		name string
		val  *float64
		dst  *float64
	}{
		{"cpu", params.CPU, &th.CPU},
		{"memory", params.Memory, &th.Memory},
		{"disk", params.Disk, &th.Disk},
	} {
		if f.val == nil {
			continue
		}
		if *f.val < 1 || *f.val > 100 {
			return failureResultf(op, ErrCodeInvalidThreshold,
				"%s must be between 1 and 100, got %v", f.name, *f.val), nil
		}
		*f.dst = *f.val
	}

	s.monitor.SetThresholds(th)
	return successResult(op, time.Since(start), "thresholds updated", map[string]any{
		"thresholds": th,
	}), nil
}

// handleOptimizationReport handles the optimization_report tool
func (s *MCPServer) handleOptimizationReport(call *ToolCall) (*ToolResult, error) {
	const op = "optimization_report"
	start := time.Now()

	if s.optimizer == nil {
		return failureResult(op, ErrCodeMonitorDisabled, "resource optimization is disabled"), nil
	}

	s.optimizer.Evaluate()
	recs := s.optimizer.Recommendations()

	msg := "no recommendations; resource usage is within limits"
	if len(recs) > 0 {
		msg = fmt.Sprintf("%d recommendations", len(recs))
	}
	return successResult(op, time.Since(start), msg, map[string]any{
		"recommendations": recs,
	}), nil
}
