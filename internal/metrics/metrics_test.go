package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestSetupMetricsRoute_ReturnsHandler はメトリクスルートのハンドラーが正常に返ることを検証する。
func TestSetupMetricsRoute_ReturnsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	handler := SetupMetricsRoute(reg)
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTweetCreated()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, "chirp_tweets_created_total") {
		t.Error("response should contain chirp_tweets_created_total metric")
	}
}

// TestCollector_RecordsLabeledMetrics はラベル付きメトリクスの記録を検証する。
func TestCollector_RecordsLabeledMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(302)
	c.RecordLoginAttempt("success")
	c.RecordLoginAttempt("failure")
	c.RecordLikeToggle("like")
	c.RecordLikeToggle("unlike")
	c.RecordSessionRefresh()
	c.IncSSESubscribers()
	c.DecSSESubscribers()

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	bodyStr := string(body)

	for _, want := range []string{
		`chirp_http_status_total{status_code="200"} 1`,
		`chirp_http_status_total{status_code="302"} 1`,
		`chirp_login_attempts_total{result="success"} 1`,
		`chirp_login_attempts_total{result="failure"} 1`,
		`chirp_like_toggles_total{action="like"} 1`,
		`chirp_like_toggles_total{action="unlike"} 1`,
		`chirp_session_refresh_total 1`,
		`chirp_sse_subscribers 0`,
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("response should contain %q", want)
		}
	}
}
