package services

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "drowsiness_"

type Metrics struct {
	totalFrames      atomic.Int64
	totalErrors      atomic.Int64
	totalLatency     atomic.Int64
	facelessFrames   atomic.Int64
	alarmActivations atomic.Int64
	viewers          atomic.Int32
	lastFrameTime    atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64

	started time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) IncrementFaceless() {
	m.facelessFrames.Add(1)
}

func (m *Metrics) IncrementAlarms() {
	m.alarmActivations.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Milliseconds())
}

func (m *Metrics) SetViewers(count int) {
	m.viewers.Store(int32(count))
}

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetTotalErrors() int64 {
	return m.totalErrors.Load()
}

func (m *Metrics) GetFacelessFrames() int64 {
	return m.facelessFrames.Load()
}

func (m *Metrics) GetAlarmActivations() int64 {
	return m.alarmActivations.Load()
}

func (m *Metrics) GetAvgLatency() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames)
}

func (m *Metrics) GetViewers() int {
	return int(m.viewers.Load())
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

// DecrementWebSocketConnections decrements WebSocket connection count
func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

// GetWebSocketConnections returns current WebSocket connections
func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) GetWebSocketMessages() int64 {
	return m.wsMessages.Load()
}

func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

func (m *Metrics) GetWebSocketErrors() int64 {
	return m.wsErrors.Load()
}

// Register exposes the counters as Prometheus collectors backed by the same
// atomics that serve /api/metrics.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + "frames_total",
			Help: "Frames read from the camera",
		}, func() float64 { return float64(m.totalFrames.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + "errors_total",
			Help: "Landmark or encoding errors",
		}, func() float64 { return float64(m.totalErrors.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + "faceless_frames_total",
			Help: "Processed frames without a detected face",
		}, func() float64 { return float64(m.facelessFrames.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + "alarm_activations_total",
			Help: "Times the alarm started sounding",
		}, func() float64 { return float64(m.alarmActivations.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "stream_viewers",
			Help: "Connected /video_feed clients",
		}, func() float64 { return float64(m.viewers.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "websocket_connections",
			Help: "Connected websocket clients",
		}, func() float64 { return float64(m.wsConnections.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "frame_latency_avg_ms",
			Help: "Average per-frame processing latency in milliseconds",
		}, m.GetAvgLatency),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
