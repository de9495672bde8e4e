// Package metrics 把 worker 事件导出为 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yqhp/taskqueue/internal/worker"
)

const namespace = "taskqueue"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

// Collector 实现 worker.Observer，每个 Collector 持有独立的 Registry。
type Collector struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	workers  prometheus.Gauge
}

// New 创建指标收集器。withRuntime 为 true 时同时注册 Go 运行时和进程指标。
func New(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_total",
			Help:      "Number of task frames handled by workers, by outcome.",
		}, []string{"worker", "event"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   durationBuckets,
		}, []string{"worker"}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers",
			Help:      "Number of workers in the pool.",
		}),
	}

	c.registry.MustRegister(c.events, c.duration, c.workers)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Observe 记录一个 worker 事件。
func (c *Collector) Observe(name string, event worker.Event, took time.Duration) {
	c.events.WithLabelValues(name, string(event)).Inc()
	if event == worker.EventExecuted || event == worker.EventFailed {
		c.duration.WithLabelValues(name).Observe(took.Seconds())
	}
}

// SetWorkers 设置池中的 worker 数量。
func (c *Collector) SetWorkers(n int) {
	c.workers.Set(float64(n))
}

// Registry 返回底层 Registry。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 的 HTTP 处理器。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ worker.Observer = (*Collector)(nil)
