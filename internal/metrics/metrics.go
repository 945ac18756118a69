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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordUnitStarted()
	RecordUnitCompleted()
	RecordUnitCancelled()
	RecordStartConflict()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	unitsStarted   prometheus.Counter
	unitsCompleted prometheus.Counter
	unitsCancelled prometheus.Counter
	startConflicts prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		unitsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pomon_units_started_total",
			Help: "開始されたユニットの合計数",
		}),
		unitsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pomon_units_completed_total",
			Help: "完了マークされたユニットの合計数",
		}),
		unitsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pomon_units_cancelled_total",
			Help: "キャンセルされたユニットの合計数",
		}),
		startConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pomon_unit_start_conflicts_total",
			Help: "アクティブユニット存在により拒否された開始リクエストの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pomon_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pomon_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.unitsStarted,
		c.unitsCompleted,
		c.unitsCancelled,
		c.startConflicts,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordUnitStarted はユニット開始を記録する。
func (c *Collector) RecordUnitStarted() {
	c.unitsStarted.Inc()
}

// RecordUnitCompleted はユニット完了を記録する。
func (c *Collector) RecordUnitCompleted() {
	c.unitsCompleted.Inc()
}

// RecordUnitCancelled はユニットキャンセルを記録する。
func (c *Collector) RecordUnitCancelled() {
	c.unitsCancelled.Inc()
}

// RecordStartConflict は開始リクエストの競合拒否を記録する。
func (c *Collector) RecordStartConflict() {
	c.startConflicts.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

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
