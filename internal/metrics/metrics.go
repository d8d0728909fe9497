// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLoginAttempt(result string)
	RecordSessionRefresh()
	RecordTweetCreated()
	RecordLikeToggle(action string)
	IncSSESubscribers()
	DecSSESubscribers()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	loginAttempts   *prometheus.CounterVec
	sessionRefresh  prometheus.Counter
	tweetsCreated   prometheus.Counter
	likeToggles     *prometheus.CounterVec
	sseSubscribers  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chirp_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_login_attempts_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		sessionRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_session_refresh_total",
			Help: "セッショントークン回転の合計数",
		}),
		tweetsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_tweets_created_total",
			Help: "作成された投稿の合計数",
		}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_like_toggles_total",
			Help: "いいね切り替えの操作別合計数",
		}, []string{"action"}),
		sseSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chirp_sse_subscribers",
			Help: "現在の認証イベント購読者数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.loginAttempts,
		c.sessionRefresh,
		c.tweetsCreated,
		c.likeToggles,
		c.sseSubscribers,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginAttempt はログイン試行を結果（"success", "failure"）別に記録する。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordSessionRefresh はセッショントークン回転を記録する。
func (c *Collector) RecordSessionRefresh() {
	c.sessionRefresh.Inc()
}

// RecordTweetCreated は投稿作成を記録する。
func (c *Collector) RecordTweetCreated() {
	c.tweetsCreated.Inc()
}

// RecordLikeToggle はいいね切り替えを操作（"like", "unlike"）別に記録する。
func (c *Collector) RecordLikeToggle(action string) {
	c.likeToggles.WithLabelValues(action).Inc()
}

// IncSSESubscribers は認証イベント購読者数を増やす。
func (c *Collector) IncSSESubscribers() {
	c.sseSubscribers.Inc()
}

// DecSSESubscribers は認証イベント購読者数を減らす。
func (c *Collector) DecSSESubscribers() {
	c.sseSubscribers.Dec()
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
