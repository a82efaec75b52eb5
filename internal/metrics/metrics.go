// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// チェックアウト結果ラベル
const (
	OutcomeConfirmed     = "confirmed"
	OutcomeRejected      = "rejected"
	OutcomeSyncFailed    = "sync_failed"
	OutcomeOrderFailed   = "order_failed"
	OutcomeCartNotStored = "cart_not_stored"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイ・カタログ・チェックアウト・管理機能から利用する。
type MetricsCollector interface {
	RecordAPICall(method, path string, status int, d time.Duration)
	RecordCatalogRefresh(success bool, products int)
	RecordCheckout(outcome string)
	RecordCartLinesSynced(count int)
	RecordPriceUpdate(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiCalls        *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	catalogRefresh  *prometheus.CounterVec
	catalogProducts prometheus.Gauge
	checkouts       *prometheus.CounterVec
	cartLinesSynced prometheus.Counter
	priceUpdates    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshmart_api_requests_total",
			Help: "リモートAPI呼び出し数（エンドポイント・ステータス別、通信失敗はstatus=0）",
		}, []string{"method", "endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "freshmart_api_request_duration_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		catalogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshmart_catalog_refresh_total",
			Help: "カタログ再取得の回数",
		}, []string{"result"}),
		catalogProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshmart_catalog_products",
			Help: "カタログスナップショット内の商品数",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshmart_checkout_total",
			Help: "チェックアウトの結果別件数",
		}, []string{"outcome"}),
		cartLinesSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freshmart_cart_lines_synced_total",
			Help: "サーバーカートへ同期した明細数",
		}),
		priceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshmart_price_updates_total",
			Help: "管理者による価格更新の件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiLatency,
		c.catalogRefresh,
		c.catalogProducts,
		c.checkouts,
		c.cartLinesSynced,
		c.priceUpdates,
	)

	return c
}

// RecordAPICall はリモートAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordAPICall(method, path string, status int, d time.Duration) {
	endpoint := EndpointLabel(path)
	c.apiCalls.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordCatalogRefresh はカタログ再取得の結果を記録する。
func (c *Collector) RecordCatalogRefresh(success bool, products int) {
	c.catalogRefresh.WithLabelValues(resultLabel(success)).Inc()
	c.catalogProducts.Set(float64(products))
}

// RecordCheckout はチェックアウトの結果を記録する。
func (c *Collector) RecordCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

// RecordCartLinesSynced は同期済み明細数を加算する。
func (c *Collector) RecordCartLinesSynced(count int) {
	c.cartLinesSynced.Add(float64(count))
}

// RecordPriceUpdate は価格更新の結果を記録する。
func (c *Collector) RecordPriceUpdate(success bool) {
	c.priceUpdates.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// EndpointLabel はパス中の数値IDを{id}に置き換え、ラベルのカーディナリティを抑える。
// クエリ文字列は除去する。
func EndpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時とテストで使用する。
type Nop struct{}

func (Nop) RecordAPICall(string, string, int, time.Duration) {}
func (Nop) RecordCatalogRefresh(bool, int)                    {}
func (Nop) RecordCheckout(string)                             {}
func (Nop) RecordCartLinesSynced(int)                         {}
func (Nop) RecordPriceUpdate(bool)                            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
