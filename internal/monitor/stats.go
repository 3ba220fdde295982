// Copyright 2025 Matt Barlow
//
// Sliding window and percentile statistics

package monitor

import "sort"

// window is a fixed-capacity ring buffer of float64 samples.
// Once full, each push overwrites the oldest value.
type window struct {
	values []float64
	next   int
	full   bool
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{values: make([]float64, capacity)}
}

func (w *window) push(v float64) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.full = true
	}
}

func (w *window) count() int {
	if w.full {
		return len(w.values)
	}
	return w.next
}

// snapshot returns the stored samples in insertion order.
func (w *window) snapshot() []float64 {
	n := w.count()
	out := make([]float64, 0, n)
	if w.full {
		out = append(out, w.values[w.next:]...)
	}
	out = append(out, w.values[:w.next]...)
	return out
}

// latest returns the most recently pushed value, or false when empty.
func (w *window) latest() (float64, bool) {
	if w.count() == 0 {
		return 0, false
	}
	idx := w.next - 1
	if idx < 0 {
		idx = len(w.values) - 1
	}
	return w.values[idx], true
}

// Percentile computes the p-th percentile of values using the
// nearest-rank method. p is clamped to [0, 100]. Returns 0 for an
// empty input. The input slice is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p == 0 {
		return sorted[0]
	}
	rank := int(float64(len(sorted))*p/100 + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// Stats summarizes one metric's sliding window.
type Stats struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Latest float64 `json:"latest"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// computeStats summarizes the samples. Returns false for an empty set.
func computeStats(metric string, values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}

	s := Stats{
		Metric: metric,
		Count:  len(values),
		Latest: values[len(values)-1],
		Min:    values[0],
		Max:    values[0],
	}
	var sum float64
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Avg = sum / float64(len(values))
	s.P50 = Percentile(values, 50)
	s.P95 = Percentile(values, 95)
	return s, true
}
