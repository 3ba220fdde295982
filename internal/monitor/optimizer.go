// Copyright 2025 Matt Barlow
//
// Resource optimization advisor

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Severity levels for recommendations.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// warnFraction is the fraction of a threshold at which an advisory
// recommendation is produced before the alert itself would fire.
const warnFraction = 0.8

// Recommendation is a single resource-optimization suggestion. The
// optimizer is read-only: it never acts on the system itself.
type Recommendation struct {
	Resource  string    `json:"resource"`
	Severity  string    `json:"severity"`
	Action    string    `json:"action"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Time      time.Time `json:"time"`
}

// Optimizer periodically reads the monitor's statistics and derives
// recommendations by threshold comparison.
type Optimizer struct {
	monitor  *Monitor
	logger   *zap.Logger
	interval time.Duration

	mu   sync.RWMutex
	recs []Recommendation

	cancel context.CancelFunc
	done   chan struct{}
}

// NewOptimizer creates an Optimizer over the given monitor.
func NewOptimizer(m *Monitor, interval time.Duration, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Optimizer{
		monitor:  m,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the advisory polling goroutine.
func (o *Optimizer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.evaluate()
			}
		}
	}()
}

// Stop cancels the polling goroutine and waits for it to exit.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// actions maps a metric to its suggested remediation text.
var actions = map[string]string{
	MetricCPU:    "CPU saturated: identify and quit the heaviest processes, or defer background work",
	MetricMemory: "memory pressure high: quit unused applications to release inactive memory",
	MetricDisk:   "disk nearly full: clear application caches, logs, or old downloads",
}

// evaluate recomputes the recommendation set from current stats.
func (o *Optimizer) evaluate() {
	stats := o.monitor.AllStats()
	limits := o.monitor.Thresholds()

	thresholdFor := map[string]float64{
		MetricCPU:    limits.CPU,
		MetricMemory: limits.Memory,
		MetricDisk:   limits.Disk,
	}

	now := time.Now()
	var recs []Recommendation
	for _, s := range stats {
		limit := thresholdFor[s.Metric]
		if limit <= 0 {
			continue
		}

		// CPU spikes are judged on p95 so one transient peak does not
		// produce advice; memory and disk are judged on the latest value.
		value := s.Latest
		if s.Metric == MetricCPU {
			value = s.P95
		}

		switch {
		case value > limit:
			recs = append(recs, Recommendation{
				Resource:  s.Metric,
				Severity:  SeverityCritical,
				Action:    actions[s.Metric],
				Value:     value,
				Threshold: limit,
				Time:      now,
			})
		case value > limit*warnFraction:
			recs = append(recs, Recommendation{
				Resource:  s.Metric,
				Severity:  SeverityWarning,
				Action:    fmt.Sprintf("%s usage approaching threshold (%.1f%% of %.1f%%)", s.Metric, value, limit),
				Value:     value,
				Threshold: limit,
				Time:      now,
			})
		}
	}

	o.mu.Lock()
	o.recs = recs
	o.mu.Unlock()

	for _, r := range recs {
		if r.Severity == SeverityCritical {
			o.logger.Warn("optimization recommendation",
				zap.String("resource", r.Resource),
				zap.Float64("value", r.Value),
				zap.String("action", r.Action))
		}
	}
}

// Evaluate runs one advisory pass immediately. Exposed so the
// optimization_report tool reflects current readings without waiting
// for the next tick.
func (o *Optimizer) Evaluate() {
	o.evaluate()
}

// Recommendations returns the current recommendation set.
func (o *Optimizer) Recommendations() []Recommendation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Recommendation, len(o.recs))
	copy(out, o.recs)
	return out
}
