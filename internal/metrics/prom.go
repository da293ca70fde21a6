package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline holds the Prometheus collectors describing the capture pipeline
// itself, as opposed to the traffic it decodes.
type Pipeline struct {
	// FramesCaptured counts frames read from the source
	FramesCaptured prometheus.Counter

	// FramesDecoded counts decoded frames by the outermost layer reached
	FramesDecoded *prometheus.CounterVec

	// RecordsEmitted counts records that passed the output filter
	RecordsEmitted prometheus.Counter

	// RecordsFiltered counts records dropped by the output filter
	RecordsFiltered prometheus.Counter

	// SinkErrors counts failed sink writes by sink
	SinkErrors *prometheus.CounterVec

	// DecodeLatencySeconds measures the time spent in the cascade per frame
	DecodeLatencySeconds prometheus.Histogram

	// Running is 1 while capture is active
	Running prometheus.Gauge
}

// NewPipeline registers the pipeline collectors on reg. A nil reg uses a
// private registry, which keeps tests independent of each other.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Pipeline{
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_frames_captured_total",
			Help: "Total number of frames read from the capture source",
		}),
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sniffer_frames_decoded_total",
			Help: "Total number of frames decoded, by deepest recognised layer",
		}, []string{"layer"}),
		RecordsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_records_emitted_total",
			Help: "Total number of records handed to sinks",
		}),
		RecordsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_records_filtered_total",
			Help: "Total number of records dropped by the output filter",
		}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sniffer_sink_errors_total",
			Help: "Total number of failed sink writes",
		}, []string{"sink"}),
		DecodeLatencySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniffer_decode_latency_seconds",
			Help:    "Latency of decoding one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sniffer_pipeline_running",
			Help: "1 while the pipeline is capturing, 0 otherwise",
		}),
	}
}
