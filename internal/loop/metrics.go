package loop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyMetrics holds a streaming P50/P90/P95 estimate of FS operation
// latency, updated with zero allocation per sample.
type LatencyMetrics struct {
	mu      sync.RWMutex
	psquare *pSquareMultiQuantile
}

func newLatencyMetrics() *LatencyMetrics {
	return &LatencyMetrics{psquare: newPSquareMultiQuantile()}
}

func (l *LatencyMetrics) Observe(d time.Duration) {
	l.mu.Lock()
	l.psquare.Observe(float64(d.Microseconds()))
	l.mu.Unlock()
}

func (l *LatencyMetrics) Percentiles() (p50, p90, p95 time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return time.Duration(l.psquare.p50.Value()) * time.Microsecond,
		time.Duration(l.psquare.p90.Value()) * time.Microsecond,
		time.Duration(l.psquare.p95.Value()) * time.Microsecond
}

// QueueMetrics tracks in-flight op counts per queue.
type QueueMetrics struct {
	External atomic.Int64
	Internal atomic.Int64
	Timers   atomic.Int64
}

// Metrics is the loop-wide instrumentation surface: latency of FS ops,
// queue depths, and tick throughput (ticks/sec). It doubles as a
// prometheus.Collector so operators can scrape it directly alongside the
// internal P² view used by the loop itself.
type Metrics struct {
	Latency *LatencyMetrics
	Queue   *QueueMetrics

	tickCount atomic.Int64
	startedAt time.Time

	latencyDesc  *prometheus.Desc
	queueDesc    *prometheus.Desc
	tickRateDesc *prometheus.Desc
}

func NewMetrics() *Metrics {
	return &Metrics{
		Latency:   newLatencyMetrics(),
		Queue:     &QueueMetrics{},
		startedAt: time.Now(),
		latencyDesc: prometheus.NewDesc(
			"asyncfs_op_latency_microseconds", "Streaming percentile estimate of FS op latency.",
			[]string{"quantile"}, nil,
		),
		queueDesc: prometheus.NewDesc(
			"asyncfs_queue_depth", "Current depth of a loop queue.",
			[]string{"queue"}, nil,
		),
		tickRateDesc: prometheus.NewDesc(
			"asyncfs_tick_rate_per_second", "Average loop ticks per second since start.", nil, nil,
		),
	}
}

func (m *Metrics) IncTick() { m.tickCount.Add(1) }

func (m *Metrics) TPS() float64 {
	elapsed := time.Since(m.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.tickCount.Load()) / elapsed
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.latencyDesc
	ch <- m.queueDesc
	ch <- m.tickRateDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	p50, p90, p95 := m.Latency.Percentiles()
	ch <- prometheus.MustNewConstMetric(m.latencyDesc, prometheus.GaugeValue, float64(p50.Microseconds()), "p50")
	ch <- prometheus.MustNewConstMetric(m.latencyDesc, prometheus.GaugeValue, float64(p90.Microseconds()), "p90")
	ch <- prometheus.MustNewConstMetric(m.latencyDesc, prometheus.GaugeValue, float64(p95.Microseconds()), "p95")

	ch <- prometheus.MustNewConstMetric(m.queueDesc, prometheus.GaugeValue, float64(m.Queue.External.Load()), "external")
	ch <- prometheus.MustNewConstMetric(m.queueDesc, prometheus.GaugeValue, float64(m.Queue.Internal.Load()), "internal")
	ch <- prometheus.MustNewConstMetric(m.queueDesc, prometheus.GaugeValue, float64(m.Queue.Timers.Load()), "timers")

	ch <- prometheus.MustNewConstMetric(m.tickRateDesc, prometheus.GaugeValue, m.TPS())
}

var _ prometheus.Collector = (*Metrics)(nil)
