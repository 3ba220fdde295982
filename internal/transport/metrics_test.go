// Copyright 2025 Matt Barlow
//
// Metrics registry unit tests

package transport

import (
	"strings"
	"testing"
	"time"
)

func prometheusText(t *testing.T, m *MetricsRegistry) string {
	t.Helper()
	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	return b.String()
}

func TestRecordRequest(t *testing.T) {
	m := NewMetricsRegistry()
	m.RecordRequest("speak", "ok", 50*time.Millisecond)
	m.RecordRequest("speak", "ok", 150*time.Millisecond)
	m.RecordRequest("speak", "tool_error", 10*time.Millisecond)

	out := prometheusText(t, m)
	if !strings.Contains(out, `bridge_requests_total{tool="speak",status="ok"} 2`) {
		t.Errorf("missing ok counter:\n%s", out)
	}
	if !strings.Contains(out, `bridge_requests_total{tool="speak",status="tool_error"} 1`) {
		t.Errorf("missing tool_error counter:\n%s", out)
	}
	if !strings.Contains(out, `bridge_request_duration_seconds_count{tool="speak"} 3`) {
		t.Errorf("missing histogram count:\n%s", out)
	}
}

func TestRecordScriptExecution(t *testing.T) {
	m := NewMetricsRegistry()
	m.RecordScriptExecution("applescript", "ok")
	m.RecordScriptExecution("applescript", "ok")
	m.RecordScriptExecution("shell", "timeout")

	out := prometheusText(t, m)
	if !strings.Contains(out, `bridge_script_executions_total{language="applescript",status="ok"} 2`) {
		t.Errorf("missing applescript counter:\n%s", out)
	}
	if !strings.Contains(out, `bridge_script_executions_total{language="shell",status="timeout"} 1`) {
		t.Errorf("missing shell counter:\n%s", out)
	}
}

func TestGauges(t *testing.T) {
	m := NewMetricsRegistry()
	m.SetSSEConnections(3)
	m.SetActiveAlerts(1)

	out := prometheusText(t, m)
	if !strings.Contains(out, "bridge_sse_connections_active 3") {
		t.Errorf("missing connection gauge:\n%s", out)
	}
	if !strings.Contains(out, "bridge_alerts_active 1") {
		t.Errorf("missing alert gauge:\n%s", out)
	}

	// Gauges can go back down.
	m.SetSSEConnections(0)
	out = prometheusText(t, m)
	if !strings.Contains(out, "bridge_sse_connections_active 0") {
		t.Errorf("gauge did not decrease:\n%s", out)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := NewMetricsRegistry()
	// 3ms lands in the 0.005 bucket and everything above it.
	m.ObserveHistogram("bridge_request_duration_seconds", `tool="speak"`, 0.003)

	out := prometheusText(t, m)
	if strings.Contains(out, `le="0.001"} 1`) {
		t.Errorf("0.003 must not land in the 0.001 bucket:\n%s", out)
	}
	if !strings.Contains(out, `bridge_request_duration_seconds_bucket{tool="speak",le="0.005"} 1`) {
		t.Errorf("0.003 must land in the 0.005 bucket:\n%s", out)
	}
	if !strings.Contains(out, `bridge_request_duration_seconds_bucket{tool="speak",le="+Inf"} 1`) {
		t.Errorf("missing +Inf bucket:\n%s", out)
	}
	if !strings.Contains(out, `bridge_request_duration_seconds_sum{tool="speak"} 0.003`) {
		t.Errorf("missing sum:\n%s", out)
	}
}

func TestHistogramBuckets_CumulativeMatchesCount(t *testing.T) {
	m := NewMetricsRegistry()
	m.ObserveHistogram("bridge_request_duration_seconds", `tool="speak"`, 0.003)
	m.ObserveHistogram("bridge_request_duration_seconds", `tool="speak"`, 0.02)
	m.ObserveHistogram("bridge_request_duration_seconds", `tool="speak"`, 99) // beyond the last bound

	out := prometheusText(t, m)
	// le series accumulate each observation exactly once; no bucket can
	// exceed the total.
	for _, fragment := range []string{
		`le="0.005"} 1`,
		`le="0.025"} 2`,
		`le="10"} 2`,
		`le="+Inf"} 3`,
		`bridge_request_duration_seconds_count{tool="speak"} 3`,
	} {
		if !strings.Contains(out, fragment) {
			t.Errorf("missing %q:\n%s", fragment, out)
		}
	}
}

func TestUnknownMetricIgnored(t *testing.T) {
	m := NewMetricsRegistry()
	// Unregistered names are dropped, not panics.
	m.IncrementCounter("no_such_counter", "")
	m.SetGauge("no_such_gauge", "", 1)
	m.ObserveHistogram("no_such_histogram", "", 1)

	out := prometheusText(t, m)
	if strings.Contains(out, "no_such") {
		t.Errorf("unregistered metrics must not appear:\n%s", out)
	}
}

func TestWritePrometheus_TypeHeaders(t *testing.T) {
	m := NewMetricsRegistry()
	out := prometheusText(t, m)

	for _, header := range []string{
		"# TYPE bridge_requests_total counter",
		"# TYPE bridge_sse_connections_active gauge",
		"# TYPE bridge_request_duration_seconds histogram",
	} {
		if !strings.Contains(out, header) {
			t.Errorf("missing %q:\n%s", header, out)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics must return the same registry")
	}
}
