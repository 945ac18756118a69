package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定カウンタの値を取り出すヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordUnitStarted_IncrementsCounter はユニット開始カウンタが増加することを検証する。
func TestRecordUnitStarted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUnitStarted()
	c.RecordUnitStarted()

	if val := counterValue(t, reg, "pomon_units_started_total"); val != 2 {
		t.Errorf("units_started_total = %v, want 2", val)
	}
}

// TestRecordUnitCompleted_IncrementsCounter はユニット完了カウンタが増加することを検証する。
func TestRecordUnitCompleted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUnitCompleted()

	if val := counterValue(t, reg, "pomon_units_completed_total"); val != 1 {
		t.Errorf("units_completed_total = %v, want 1", val)
	}
}

// TestRecordUnitCancelled_IncrementsCounter はキャンセルカウンタが増加することを検証する。
func TestRecordUnitCancelled_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUnitCancelled()

	if val := counterValue(t, reg, "pomon_units_cancelled_total"); val != 1 {
		t.Errorf("units_cancelled_total = %v, want 1", val)
	}
}

// TestRecordStartConflict_IncrementsCounter は開始競合カウンタが増加することを検証する。
func TestRecordStartConflict_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStartConflict()
	c.RecordStartConflict()
	c.RecordStartConflict()

	if val := counterValue(t, reg, "pomon_unit_start_conflicts_total"); val != 3 {
		t.Errorf("unit_start_conflicts_total = %v, want 3", val)
	}
}

// TestRecordHTTPStatus_CountsByStatusCode はステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_CountsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(409)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	counts := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() != "pomon_http_status_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status_code" {
					counts[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}

	if counts["200"] != 2 {
		t.Errorf("status 200 count = %v, want 2", counts["200"])
	}
	if counts["409"] != 1 {
		t.Errorf("status 409 count = %v, want 1", counts["409"])
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(50 * time.Millisecond)
	c.RecordRequestLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "pomon_request_latency_seconds" {
			found = true
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 2 {
				t.Errorf("sample count = %d, want 2", count)
			}
		}
	}
	if !found {
		t.Error("pomon_request_latency_seconds metric not found")
	}
}
