package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordCheck_Counters はチェック結果カウンタの増加を検証する。
func TestRecordCheck_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheck(true, 100*time.Millisecond)
	c.RecordCheck(true, 200*time.Millisecond)
	c.RecordCheck(false, 5*time.Second)

	if val := counterValue(t, reg, "rsscast_check_success_total"); val != 2 {
		t.Errorf("check_success_total = %v, want 2", val)
	}
	if val := counterValue(t, reg, "rsscast_check_fail_total"); val != 1 {
		t.Errorf("check_fail_total = %v, want 1", val)
	}
}

// TestRecordCheck_Latency はチェックレイテンシのヒストグラム記録を検証する。
func TestRecordCheck_Latency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheck(true, 100*time.Millisecond)
	c.RecordCheck(false, 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "rsscast_check_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("rsscast_check_latency_seconds metric not found")
	}
}

// TestRecordNewItems は新着記事カウンタの加算を検証する。
func TestRecordNewItems(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewItems(3)
	c.RecordNewItems(2)

	if val := counterValue(t, reg, "rsscast_new_items_total"); val != 5 {
		t.Errorf("new_items_total = %v, want 5", val)
	}
}

// TestRecordDelivery_ModeLabels は配信カウンタが方式別に記録されることを検証する。
func TestRecordDelivery_ModeLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDelivery("forward", true)
	c.RecordDelivery("forward", true)
	c.RecordDelivery("image", false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		switch mf.GetName() {
		case "rsscast_delivery_success_total":
			m := mf.GetMetric()[0]
			if m.GetLabel()[0].GetValue() != "forward" {
				t.Errorf("unexpected label: %s", m.GetLabel()[0].GetValue())
			}
			if m.GetCounter().GetValue() != 2 {
				t.Errorf("delivery_success_total{mode=forward} = %v, want 2", m.GetCounter().GetValue())
			}
		case "rsscast_delivery_fail_total":
			m := mf.GetMetric()[0]
			if m.GetLabel()[0].GetValue() != "image" {
				t.Errorf("unexpected label: %s", m.GetLabel()[0].GetValue())
			}
			if m.GetCounter().GetValue() != 1 {
				t.Errorf("delivery_fail_total{mode=image} = %v, want 1", m.GetCounter().GetValue())
			}
		}
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheck(true, 500*time.Millisecond)
	c.RecordNewItems(3)
	c.RecordDelivery("single", true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"rsscast_check_success_total",
		"rsscast_check_latency_seconds",
		"rsscast_new_items_total",
		"rsscast_delivery_success_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}
