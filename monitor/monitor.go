// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	LiveConnections prometheus.Gauge
	GamesServed     prometheus.Counter
	FramesReceived  *prometheus.CounterVec
	FramesSent      *prometheus.CounterVec
	MalformedFrames prometheus.Counter
	PendingCalls    prometheus.Gauge
	CallLatency     *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Number of open socket connections",
		}),
		GamesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_served_total",
			Help:      "Total number of games served via new_game",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames received, by kind",
		}, []string{"kind"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent, by kind",
		}, []string{"kind"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Total number of inbound frames dropped as malformed",
		}),
		PendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_calls",
			Help:      "Number of calls awaiting a response",
		}),
		CallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_latency_seconds",
			Help:      "Call round-trip latency, by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.LiveConnections,
		m.GamesServed,
		m.FramesReceived,
		m.FramesSent,
		m.MalformedFrames,
		m.PendingCalls,
		m.CallLatency,
	)

	return m
}

// Monitor 实现 socket.Metrics，同时暴露 /metrics 与 expvar
type Monitor struct {
	metrics    *Metrics
	startTime  time.Time
	frameCount int64
	mutex      sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("frames", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.frameCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// --- socket.Metrics 实现 ---

func (m *Monitor) FrameReceived(kind string) {
	m.metrics.FramesReceived.WithLabelValues(kind).Inc()
	m.mutex.Lock()
	m.frameCount++
	m.mutex.Unlock()
}

func (m *Monitor) FrameSent(kind string) {
	m.metrics.FramesSent.WithLabelValues(kind).Inc()
}

func (m *Monitor) MalformedFrame() {
	m.metrics.MalformedFrames.Inc()
}

func (m *Monitor) CallResolved(outcome string, latency time.Duration) {
	m.metrics.CallLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

func (m *Monitor) SetPendingCalls(n int) {
	m.metrics.PendingCalls.Set(float64(n))
}

// --- 服务器指标 ---

func (m *Monitor) IncLiveConnections() {
	m.metrics.LiveConnections.Inc()
}

func (m *Monitor) DecLiveConnections() {
	m.metrics.LiveConnections.Dec()
}

func (m *Monitor) IncGamesServed() {
	m.metrics.GamesServed.Inc()
}
