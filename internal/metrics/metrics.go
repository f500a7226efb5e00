package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// Metrics holds all console metrics
type Metrics struct {
	// Camera
	FramesCaptured  atomic.Uint64
	PreviewFrames   atomic.Uint64
	CameraStreaming atomic.Uint64 // 0 = stopped, 1 = streaming

	// Dashboard clients
	EventClients  atomic.Int64
	StreamClients atomic.Int64
	WebRTCPeers   atomic.Int64

	analyses     *prometheus.CounterVec
	latency      prometheus.Histogram
	inFlight     prometheus.Gauge
	probes       *prometheus.CounterVec
	connectivity prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_analyses_total",
			Help: "Completed frame analyses by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "console_analysis_duration_seconds",
			Help:    "Round-trip time of analysis requests",
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 10),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_analysis_in_flight",
			Help: "Analysis in flight (0=idle, 1=analyzing)",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_health_probes_total",
			Help: "Resolved health probes by resulting status",
		}, []string{"status"}),
		connectivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_server_connectivity",
			Help: "Analysis server connectivity (0=connecting, 1=connected, 2=disconnected)",
		}),
	}

	m.registry.MustRegister(m.analyses, m.latency, m.inFlight, m.probes, m.connectivity)
	m.registerFuncs()

	return m
}

func (m *Metrics) registerFuncs() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "console_frames_captured_total",
			Help: "Frames captured for analysis",
		},
		func() float64 { return float64(m.FramesCaptured.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "console_preview_frames_total",
			Help: "MJPEG preview frames generated",
		},
		func() float64 { return float64(m.PreviewFrames.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "console_camera_streaming",
			Help: "Camera streaming (0=stopped, 1=streaming)",
		},
		func() float64 { return float64(m.CameraStreaming.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "console_event_clients",
			Help: "Connected event stream clients (SSE and websocket)",
		},
		func() float64 { return float64(m.EventClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "console_stream_clients",
			Help: "Connected MJPEG preview clients",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "console_webrtc_peers",
			Help: "Connected WebRTC data channel peers",
		},
		func() float64 { return float64(m.WebRTCPeers.Load()) },
	))
}

// ObserveAnalysis records one completed analysis.
func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration) {
	m.analyses.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.latency.Observe(elapsed.Seconds())
	}
}

// SetAnalyzing updates the in-flight gauge.
func (m *Metrics) SetAnalyzing(active bool) {
	if active {
		m.inFlight.Set(1)
		return
	}
	m.inFlight.Set(0)
}

// ObserveProbe records a resolved health probe and the resulting status.
func (m *Metrics) ObserveProbe(status types.ConnectivityStatus) {
	m.probes.WithLabelValues(string(status)).Inc()
	m.connectivity.Set(connectivityValue(status))
}

// SetCameraStreaming updates the camera gauge.
func (m *Metrics) SetCameraStreaming(streaming bool) {
	if streaming {
		m.CameraStreaming.Store(1)
		return
	}
	m.CameraStreaming.Store(0)
}

func connectivityValue(status types.ConnectivityStatus) float64 {
	switch status {
	case types.StatusConnected:
		return 1
	case types.StatusDisconnected:
		return 2
	default:
		return 0
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
