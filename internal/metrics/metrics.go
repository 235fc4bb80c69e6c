// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はチェックサイクルと配信のメトリクスを収集する。
// スケジューラとディスパッチャの両方から利用される。
type Collector struct {
	checkSuccess  prometheus.Counter
	checkFail     prometheus.Counter
	checkLatency  prometheus.Histogram
	newItems      prometheus.Counter
	deliveries    *prometheus.CounterVec
	deliveryFails *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsscast_check_success_total",
			Help: "フィードチェック成功の合計数",
		}),
		checkFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsscast_check_fail_total",
			Help: "フィードチェック失敗の合計数",
		}),
		checkLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsscast_check_latency_seconds",
			Help:    "フィードチェックのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		newItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsscast_new_items_total",
			Help: "検知された新着記事の合計数",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsscast_delivery_success_total",
			Help: "配信方式別の配信成功数",
		}, []string{"mode"}),
		deliveryFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsscast_delivery_fail_total",
			Help: "配信方式別の配信失敗数",
		}, []string{"mode"}),
	}

	reg.MustRegister(
		c.checkSuccess,
		c.checkFail,
		c.checkLatency,
		c.newItems,
		c.deliveries,
		c.deliveryFails,
	)

	return c
}

// RecordCheck はチェックサイクルの結果とレイテンシを記録する。
func (c *Collector) RecordCheck(success bool, duration time.Duration) {
	if success {
		c.checkSuccess.Inc()
	} else {
		c.checkFail.Inc()
	}
	c.checkLatency.Observe(duration.Seconds())
}

// RecordNewItems は検知された新着記事数を記録する。
func (c *Collector) RecordNewItems(count int) {
	c.newItems.Add(float64(count))
}

// RecordDelivery は配信結果を配信方式別に記録する。
func (c *Collector) RecordDelivery(mode string, success bool) {
	if success {
		c.deliveries.WithLabelValues(mode).Inc()
	} else {
		c.deliveryFails.WithLabelValues(mode).Inc()
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
