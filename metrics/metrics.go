package metrics

import (
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

/* ========================================================================
 * Prometheus Metrics
 * ========================================================================
 * 指标统一以 tenancy_ 为前缀，按子系统分组
 * ======================================================================== */

const namespace = "tenancy"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		Buckets: prometheus.DefBuckets,
	}, labels)
}

// http
var (
	HTTPRequestDuration = histogramVec("http", "request_duration_seconds",
		"HTTP request duration in seconds", "method", "path", "status")
	HTTPRequestTotal = counterVec("http", "request_total",
		"Total number of HTTP requests", "method", "path", "status")
)

// 租户作用域与版本控制
var (
	// ScopeBypassTotal 显式跳过租户过滤（审计）
	ScopeBypassTotal = counterVec("scope", "bypass_total",
		"Repository operations executed with an explicit tenant bypass", "table", "op")

	// ScopeRejectedTotal reason: missing_context / cross_tenant_filter / unregistered_table
	ScopeRejectedTotal = counterVec("scope", "rejected_total",
		"Repository operations rejected by tenant scoping", "table", "reason")

	VersionConflictTotal = counterVec("version", "conflict_total",
		"Optimistic concurrency conflicts", "table")
)

// 级联删除与文件保留
var (
	// CascadeRunTotal outcome: completed / failed
	CascadeRunTotal = counterVec("cascade", "run_total",
		"Cascade deletion runs", "root_kind", "outcome")
	CascadeRowsMarked = counterVec("cascade", "rows_marked_total",
		"Rows soft-deleted by cascade runs", "kind")
	CascadeDuration = histogramVec("cascade", "duration_seconds",
		"Cascade deletion duration in seconds", "root_kind")

	// FileTagTotal result: ok / error
	FileTagTotal = counterVec("filestore", "tag_total",
		"File retention tag attempts", "backend", "result")
	PendingTagGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "filestore", Name: "pending_tags",
		Help: "File retention tags waiting for reconciliation",
	})

	// PublishTotal result: ok / error / abandoned
	PublishTotal = counterVec("kafka", "publish_total",
		"Retention tag messages published to Kafka", "topic", "result")
)

// RegisterMetricsEndpoint 挂载 /metrics
func RegisterMetricsEndpoint(app *fiber.App) {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	})
}
