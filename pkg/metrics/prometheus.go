package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	insightsReceived *prometheus.CounterVec
	stepLatency      prometheus.Histogram
	queueDepth       *prometheus.GaugeVec
	flushes          *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		insightsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapipe_insights_received_total",
				Help: "Total insights received from producers",
			},
			[]string{"source"},
		),
		stepLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alphapipe_engine_step_seconds",
				Help:    "Duration of one engine step",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphapipe_queue_depth",
				Help: "Current depth of pipeline work queues",
			},
			[]string{"queue"},
		),
		flushes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapipe_flushes_total",
				Help: "Timer-gated flushes performed by the pipeline",
			},
			[]string{"kind"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapipe_messages_sent_total",
				Help: "Update messages delivered to the messaging sink",
			},
			[]string{"backend"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapipe_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphapipe_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordInsightsReceived(source string, n int) {
	r.insightsReceived.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordStepLatency(seconds float64) {
	r.stepLatency.Observe(seconds)
}

func (r *Recorder) RecordQueueDepth(queue string, depth int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (r *Recorder) RecordFlush(kind string) {
	r.flushes.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordMessageSent(backend string, insights int) {
	r.messagesSent.WithLabelValues(backend).Add(float64(insights))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
