// Copyright 2025 Matt Barlow
//
// Performance monitoring poller

// Package monitor polls OS-level counters on a timer, keeps sliding
// windows of samples, and compares readings against thresholds to
// raise and clear alerts.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbarlow/macbridge/internal/transport"
)

// Metric names tracked by the monitor.
const (
	MetricCPU    = "cpu"
	MetricMemory = "memory"
	MetricDisk   = "disk"
)

// maxAlertHistory bounds the retained alert history.
const maxAlertHistory = 100

// Thresholds are the per-metric alert thresholds in percent.
type Thresholds struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
}

// Alert records a threshold crossing. An alert stays active until the
// metric drops back below its threshold.
type Alert struct {
	ID        string    `json:"id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// Options configures a Monitor.
type Options struct {
	Interval   time.Duration
	WindowSize int
	Thresholds Thresholds
	Logger     *zap.Logger
	// OnAlert, if set, is called from the polling goroutine each time a
	// new alert fires. Must not block.
	OnAlert func(Alert)
}

// Monitor is the background performance poller. All accessors are safe
// for concurrent use with the polling goroutine.
type Monitor struct {
	sampler    Sampler
	logger     *zap.Logger
	metrics    *transport.MetricsRegistry
	onAlert    func(Alert)
	interval   time.Duration
	windowSize int

	mu         sync.RWMutex
	windows    map[string]*window
	thresholds Thresholds
	active     map[string]Alert
	history    []Alert
	started    time.Time
	running    bool
	lastErr    error

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Monitor. It does not start polling; call Start.
func New(sampler Sampler, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = 120
	}

	return &Monitor{
		sampler:    sampler,
		logger:     logger,
		metrics:    transport.DefaultMetrics(),
		onAlert:    opts.OnAlert,
		interval:   interval,
		windowSize: windowSize,
		windows: map[string]*window{
			MetricCPU:    newWindow(windowSize),
			MetricMemory: newWindow(windowSize),
			MetricDisk:   newWindow(windowSize),
		},
		thresholds: opts.Thresholds,
		active:     make(map[string]Alert),
	}
}

// Start launches the polling goroutine. Polling stops when ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.started = time.Now()
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			close(done)
		}()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Info("performance monitor started",
			zap.Duration("interval", m.interval),
			zap.Int("window_size", m.windowSize))

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("performance monitor stopped")
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

// Stop cancels the polling goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poll takes one sample immediately, outside the timer. Callers that
// need fresh statistics use this instead of waiting for the next tick.
func (m *Monitor) Poll(ctx context.Context) {
	m.tick(ctx)
}

// tick takes one sample, updates the windows, and evaluates thresholds.
func (m *Monitor) tick(ctx context.Context) {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("sample failed", zap.Error(err))
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return
	}

	var fired []Alert

	m.mu.Lock()
	m.lastErr = nil
	readings := map[string]float64{
		MetricCPU:    sample.CPU,
		MetricMemory: sample.Memory,
		MetricDisk:   sample.Disk,
	}
	limits := map[string]float64{
		MetricCPU:    m.thresholds.CPU,
		MetricMemory: m.thresholds.Memory,
		MetricDisk:   m.thresholds.Disk,
	}
	for metric, value := range readings {
		m.windows[metric].push(value)

		limit := limits[metric]
		if limit <= 0 {
			continue
		}
		_, firing := m.active[metric]
		switch {
		case value > limit && !firing:
			alert := Alert{
				ID:        uuid.NewString(),
				Metric:    metric,
				Value:     value,
				Threshold: limit,
				FiredAt:   sample.Taken,
			}
			m.active[metric] = alert
			m.history = append(m.history, alert)
			if len(m.history) > maxAlertHistory {
				m.history = m.history[len(m.history)-maxAlertHistory:]
			}
			fired = append(fired, alert)
		case value <= limit && firing:
			delete(m.active, metric)
		}
	}
	activeCount := len(m.active)
	m.mu.Unlock()

	m.metrics.SetActiveAlerts(activeCount)

	for _, alert := range fired {
		m.logger.Warn("threshold alert",
			zap.String("metric", alert.Metric),
			zap.Float64("value", alert.Value),
			zap.Float64("threshold", alert.Threshold))
		if m.onAlert != nil {
			m.onAlert(alert)
		}
	}
}

// SetThresholds replaces the alert thresholds. Zero values disable the
// corresponding check. Callers validate ranges.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// Thresholds returns the current alert thresholds.
func (m *Monitor) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// StatsFor summarizes one metric's window. Returns false if the metric
// is unknown or has no samples yet.
func (m *Monitor) StatsFor(metric string) (Stats, bool) {
	m.mu.RLock()
	w, ok := m.windows[metric]
	if !ok {
		m.mu.RUnlock()
		return Stats{}, false
	}
	values := w.snapshot()
	m.mu.RUnlock()

	return computeStats(metric, values)
}

// AllStats summarizes every tracked metric that has samples.
func (m *Monitor) AllStats() []Stats {
	out := make([]Stats, 0, 3)
	for _, metric := range []string{MetricCPU, MetricMemory, MetricDisk} {
		if s, ok := m.StatsFor(metric); ok {
			out = append(out, s)
		}
	}
	return out
}

// ActiveAlerts returns the currently firing alerts.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alert, 0, len(m.active))
	for _, metric := range []string{MetricCPU, MetricMemory, MetricDisk} {
		if a, ok := m.active[metric]; ok {
			out = append(out, a)
		}
	}
	return out
}

// RecentAlerts returns the bounded alert history, oldest first.
func (m *Monitor) RecentAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alert, len(m.history))
	copy(out, m.history)
	return out
}

// Running reports whether the polling goroutine is alive and the time
// it started, plus the last sampling error if the most recent tick
// failed. It reports false again after Stop.
func (m *Monitor) Running() (bool, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running, m.started, m.lastErr
}
