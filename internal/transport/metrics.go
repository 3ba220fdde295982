// Copyright 2025 Matt Barlow
//
// Metrics registry for observability

package transport

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MetricsRegistry provides thread-safe metrics collection for the bridge.
// It tracks request counts, latencies, and active connections using simple
// in-memory counters that can be exported in Prometheus text format.
type MetricsRegistry struct {
	counters   map[string]*counter
	histograms map[string]*histogram
	gauges     map[string]*gauge
	mu         sync.RWMutex
}

// counter is a monotonically increasing counter with optional labels.
type counter struct {
	values map[string]uint64 // label combo -> count
	mu     sync.RWMutex
}

// histogram is a distribution of values with predefined buckets.
type histogram struct {
	counts  map[string][]uint64 // label combo -> bucket counts
	sums    map[string]float64  // label combo -> sum of all values
	totals  map[string]uint64   // label combo -> total count
	buckets []float64           // bucket upper bounds
	mu      sync.RWMutex
}

// gauge is a value that can go up or down.
type gauge struct {
	values map[string]float64
	mu     sync.RWMutex
}

// Default histogram buckets for request latencies (in seconds)
var defaultLatencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

// NewMetricsRegistry creates a metrics registry with the standard bridge
// metrics pre-registered.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		gauges:     make(map[string]*gauge),
	}

	m.registerCounter("bridge_requests_total")
	m.registerCounter("bridge_sse_events_sent_total")
	m.registerCounter("bridge_script_executions_total")
	m.registerHistogram("bridge_request_duration_seconds", defaultLatencyBuckets)
	m.registerGauge("bridge_sse_connections_active")
	m.registerGauge("bridge_alerts_active")

	return m
}

func (m *MetricsRegistry) registerCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] = &counter{values: make(map[string]uint64)}
}

func (m *MetricsRegistry) registerHistogram(name string, buckets []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[name] = &histogram{
		buckets: buckets,
		counts:  make(map[string][]uint64),
		sums:    make(map[string]float64),
		totals:  make(map[string]uint64),
	}
}

func (m *MetricsRegistry) registerGauge(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = &gauge{values: make(map[string]float64)}
}

// IncrementCounter increments a counter by 1 for the given label combination.
// Labels should be formatted as: key1="value1",key2="value2"
func (m *MetricsRegistry) IncrementCounter(name string, labels string) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	c.values[labels]++
	c.mu.Unlock()
}

// ObserveHistogram records a value in a histogram for the given label combination.
func (m *MetricsRegistry) ObserveHistogram(name string, labels string, value float64) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.counts[labels]; !exists {
		h.counts[labels] = make([]uint64, len(h.buckets)+1) // +1 for +Inf
		h.sums[labels] = 0
		h.totals[labels] = 0
	}

	h.sums[labels] += value
	h.totals[labels]++

	// Counts are stored per bucket; the exporter accumulates them into
	// the cumulative le series. Only the first bucket that fits gets
	// the observation, falling through to +Inf.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[labels][i]++
			return
		}
	}
	h.counts[labels][len(h.buckets)]++
}

// SetGauge sets a gauge to a specific value.
func (m *MetricsRegistry) SetGauge(name string, labels string, value float64) {
	m.mu.RLock()
	g, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.values[labels] = value
	g.mu.Unlock()
}

// IncrementGauge increments a gauge by delta.
func (m *MetricsRegistry) IncrementGauge(name string, labels string, delta float64) {
	m.mu.RLock()
	g, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.values[labels] += delta
	g.mu.Unlock()
}

// WritePrometheus writes all metrics in Prometheus text format to the writer.
func (m *MetricsRegistry) WritePrometheus(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Sort metric names for deterministic output
	counterNames := sortedKeys(m.counters)
	gaugeNames := sortedKeys(m.gauges)
	histogramNames := sortedKeys(m.histograms)

	for _, name := range counterNames {
		c := m.counters[name]
		c.mu.RLock()
		err := writeSimpleMetric(w, name, "counter", c.values, func(w io.Writer, name, l string, v uint64) error {
			if l == "" {
				_, err := fmt.Fprintf(w, "%s %d\n", name, v)
				return err
			}
			_, err := fmt.Fprintf(w, "%s{%s} %d\n", name, l, v)
			return err
		})
		c.mu.RUnlock()
		if err != nil {
			return err
		}
	}

	for _, name := range gaugeNames {
		g := m.gauges[name]
		g.mu.RLock()
		err := writeSimpleMetric(w, name, "gauge", g.values, func(w io.Writer, name, l string, v float64) error {
			if l == "" {
				_, err := fmt.Fprintf(w, "%s %g\n", name, v)
				return err
			}
			_, err := fmt.Fprintf(w, "%s{%s} %g\n", name, l, v)
			return err
		})
		g.mu.RUnlock()
		if err != nil {
			return err
		}
	}

	for _, name := range histogramNames {
		h := m.histograms[name]
		h.mu.RLock()
		err := writeHistogram(w, name, h)
		h.mu.RUnlock()
		if err != nil {
			return err
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSimpleMetric[V any](w io.Writer, name, typ string, values map[string]V, emit func(io.Writer, string, string, V) error) error {
	if _, err := fmt.Fprintf(w, "# TYPE %s %s\n", name, typ); err != nil {
		return err
	}
	for _, l := range sortedKeys(values) {
		if err := emit(w, name, l, values[l]); err != nil {
			return err
		}
	}
	return nil
}

func writeHistogram(w io.Writer, name string, h *histogram) error {
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", name); err != nil {
		return err
	}
	for _, l := range sortedKeys(h.counts) {
		counts := h.counts[l]
		labelPrefix := ""
		if l != "" {
			labelPrefix = l + ","
		}

		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += counts[i]
			if _, err := fmt.Fprintf(w, "%s_bucket{%sle=\"%g\"} %d\n", name, labelPrefix, bound, cumulative); err != nil {
				return err
			}
		}
		cumulative += counts[len(h.buckets)]
		if _, err := fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", name, labelPrefix, cumulative); err != nil {
			return err
		}

		if l == "" {
			if _, err := fmt.Fprintf(w, "%s_sum %g\n%s_count %d\n", name, h.sums[l], name, h.totals[l]); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%s_sum{%s} %g\n%s_count{%s} %d\n", name, l, h.sums[l], name, l, h.totals[l]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRequest records a tool invocation with count and latency metrics.
// This is the main entry point for instrumentation from the bridge server.
func (m *MetricsRegistry) RecordRequest(tool string, status string, duration time.Duration) {
	labels := fmt.Sprintf(`tool="%s",status="%s"`, tool, status)
	m.IncrementCounter("bridge_requests_total", labels)

	toolLabels := fmt.Sprintf(`tool="%s"`, tool)
	m.ObserveHistogram("bridge_request_duration_seconds", toolLabels, duration.Seconds())
}

// RecordScriptExecution records a gateway round-trip to the OS scripting runtime.
func (m *MetricsRegistry) RecordScriptExecution(language string, status string) {
	m.IncrementCounter("bridge_script_executions_total",
		fmt.Sprintf(`language="%s",status="%s"`, language, status))
}

// RecordSSEEvent records an SSE event being sent.
func (m *MetricsRegistry) RecordSSEEvent() {
	m.IncrementCounter("bridge_sse_events_sent_total", "")
}

// SetSSEConnections sets the current number of active SSE connections.
func (m *MetricsRegistry) SetSSEConnections(count int) {
	m.SetGauge("bridge_sse_connections_active", "", float64(count))
}

// SetActiveAlerts sets the number of currently firing monitor alerts.
func (m *MetricsRegistry) SetActiveAlerts(count int) {
	m.SetGauge("bridge_alerts_active", "", float64(count))
}

// Global metrics registry instance
var defaultMetrics = NewMetricsRegistry()

// DefaultMetrics returns the global metrics registry.
func DefaultMetrics() *MetricsRegistry {
	return defaultMetrics
}
