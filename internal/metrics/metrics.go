// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストア・APIクライアント・ワーカーから利用する。
type MetricsCollector interface {
	RecordMutation(operation string, err error, duration time.Duration)
	RecordUpstreamStatus(operation string, statusCode int)
	RecordCacheSize(users, experiences int)
	RecordUpload(err error, bytes int64)
	RecordRefresh(err error)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	mutations         *prometheus.CounterVec
	mutationLatency   *prometheus.HistogramVec
	upstreamStatus    *prometheus.CounterVec
	cachedUsers       prometheus.Gauge
	cachedExperiences prometheus.Gauge
	uploads           *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	refreshRuns       *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkedout_store_mutations_total",
			Help: "ストア操作の結果別の合計数",
		}, []string{"operation", "result"}),
		mutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkedout_store_mutation_duration_seconds",
			Help:    "ストア操作のレイテンシ（秒）。Repository呼び出しを含む",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkedout_upstream_http_status_total",
			Help: "ディレクトリAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"operation", "status_code"}),
		cachedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkedout_cached_users",
			Help: "ストアにキャッシュされているユーザー数",
		}),
		cachedExperiences: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkedout_cached_experiences",
			Help: "ストアにキャッシュされている職歴数",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkedout_image_uploads_total",
			Help: "画像アップロードの結果別の合計数",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkedout_image_upload_bytes_total",
			Help: "アップロードに成功した画像の合計バイト数",
		}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkedout_refresh_runs_total",
			Help: "バックグラウンド再取得の結果別の実行回数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.mutations,
		c.mutationLatency,
		c.upstreamStatus,
		c.cachedUsers,
		c.cachedExperiences,
		c.uploads,
		c.uploadBytes,
		c.refreshRuns,
	)

	return c
}

// RecordMutation はストア操作の結果とレイテンシを記録する。
func (c *Collector) RecordMutation(operation string, err error, duration time.Duration) {
	c.mutations.WithLabelValues(operation, result(err)).Inc()
	c.mutationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpstreamStatus はディレクトリAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(operation string, statusCode int) {
	c.upstreamStatus.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// RecordCacheSize はキャッシュ済みのユーザー数と職歴数を記録する。
func (c *Collector) RecordCacheSize(users, experiences int) {
	c.cachedUsers.Set(float64(users))
	c.cachedExperiences.Set(float64(experiences))
}

// RecordUpload は画像アップロードの結果を記録する。
func (c *Collector) RecordUpload(err error, bytes int64) {
	c.uploads.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.uploadBytes.Add(float64(bytes))
	}
}

// RecordRefresh はバックグラウンド再取得の結果を記録する。
func (c *Collector) RecordRefresh(err error) {
	c.refreshRuns.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
