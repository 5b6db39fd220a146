package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elevapi_requests_total",
		Help: "Total number of lookup requests by method and status code",
	}, []string{"method", "code"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevapi_request_duration_ms",
		Help:    "Lookup request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevapi_batch_points",
		Help:    "Number of points per dispatched batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 512},
	})
	PointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elevapi_points_total",
		Help: "Per-point lookup outcomes",
	}, []string{"outcome"})
	ParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_parse_errors_total",
		Help: "Batches rejected before dispatch",
	})
	PoolHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_pool_hits_total",
		Help: "Accessor pool acquisitions served by a resident handle",
	})
	PoolMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_pool_misses_total",
		Help: "Accessor pool acquisitions that required an open",
	})
	PoolEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_pool_evictions_total",
		Help: "Handles evicted as least recently used",
	})
	PoolOpenFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_pool_open_failures_total",
		Help: "Dataset opens that failed",
	})
	PoolOpenDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevapi_pool_open_duration_ms",
		Help:    "Dataset open duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	PoolResident = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elevapi_pool_resident",
		Help: "Handles currently resident in the accessor pool",
	})
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elevapi_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"limiter"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(PointsTotal)
	prometheus.MustRegister(ParseErrorsTotal)
	prometheus.MustRegister(PoolHitsTotal)
	prometheus.MustRegister(PoolMissesTotal)
	prometheus.MustRegister(PoolEvictionsTotal)
	prometheus.MustRegister(PoolOpenFailuresTotal)
	prometheus.MustRegister(PoolOpenDurationMs)
	prometheus.MustRegister(PoolResident)
	prometheus.MustRegister(RateLimitedTotal)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：统一暴露已注册指标，供 Prometheus 抓取；在主入口挂载到 <base>/metrics。
func Handler() http.Handler { return promhttp.Handler() }
