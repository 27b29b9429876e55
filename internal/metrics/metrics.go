// Package metrics exposes the compositor and recorder as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio/internal/compositor"
	"studio/internal/recorder"
	"studio/internal/studio"
)

// PrometheusCollector implements compositor.FrameObserver and
// studio.RecordingObserver.
type PrometheusCollector struct {
	registry *prometheus.Registry

	// Counters
	framesDrawnTotal    prometheus.Counter
	artifactsTotal      prometheus.Counter
	recordedChunksTotal *prometheus.CounterVec
	recordedBytesTotal  *prometheus.CounterVec

	// Gauges
	activeLayers prometheus.Gauge

	// Histograms
	drawDuration     prometheus.Histogram
	artifactDuration prometheus.Histogram
	artifactSize     prometheus.Histogram
}

var (
	_ compositor.FrameObserver = (*PrometheusCollector)(nil)
	_ studio.RecordingObserver = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the studio metrics, plus the Go runtime
// and process collectors, on a fresh registry.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		framesDrawnTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "studio_frames_drawn_total",
			Help: "Total number of composited frames drawn",
		}),

		artifactsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "studio_artifacts_total",
			Help: "Total number of finished recordings",
		}),

		recordedChunksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_recorded_chunks_total",
			Help: "Chunks emitted by the recorder",
		}, []string{"kind"}),

		recordedBytesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_recorded_bytes_total",
			Help: "Encoded bytes emitted by the recorder",
		}, []string{"kind"}),

		activeLayers: f.NewGauge(prometheus.GaugeOpts{
			Name: "studio_active_layers",
			Help: "Layers rendered in the last draw cycle",
		}),

		drawDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_draw_duration_seconds",
			Help:    "Duration of one draw cycle",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
		}),

		artifactDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_artifact_duration_seconds",
			Help:    "Playing time of finished recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		artifactSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_artifact_size_bytes",
			Help:    "Size of finished recordings",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
	}
}

// FrameDrawn records one draw cycle.
func (p *PrometheusCollector) FrameDrawn(layers int, took time.Duration) {
	p.framesDrawnTotal.Inc()
	p.activeLayers.Set(float64(layers))
	p.drawDuration.Observe(took.Seconds())
}

// ChunkRecorded counts one recorder chunk.
func (p *PrometheusCollector) ChunkRecorded(kind string, bytes int) {
	p.recordedChunksTotal.WithLabelValues(kind).Inc()
	p.recordedBytesTotal.WithLabelValues(kind).Add(float64(bytes))
}

// ArtifactCreated records a finished recording.
func (p *PrometheusCollector) ArtifactCreated(a *recorder.Artifact) {
	p.artifactsTotal.Inc()
	p.artifactDuration.Observe(a.Duration.Seconds())
	p.artifactSize.Observe(float64(len(a.Data)))
}

// Registry returns the registry the metrics live in.
func (p *PrometheusCollector) Registry() *prometheus.Registry { return p.registry }

// Handler serves the metrics in the Prometheus text format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
