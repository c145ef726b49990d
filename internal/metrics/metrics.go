package metrics

import "github.com/prometheus/client_golang/prometheus"

// CompletionMetrics exposes counters/histograms for the completion pipeline.
// A nil *CompletionMetrics is valid and records nothing.
type CompletionMetrics struct {
	requestsTotal   *prometheus.CounterVec
	framesTotal     *prometheus.CounterVec
	streamsTotal    *prometheus.CounterVec
	firstFragment   *prometheus.HistogramVec
	streamDuration  *prometheus.HistogramVec
	inflightStreams prometheus.Gauge
}

func NewCompletionMetrics(reg prometheus.Registerer) *CompletionMetrics {
	m := &CompletionMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yuanbao2api",
			Subsystem: "http",
			Name:      "chat_requests_total",
			Help:      "Chat completion requests by model, mode and status code",
		}, []string{"model", "stream", "code"}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yuanbao2api",
			Subsystem: "upstream",
			Name:      "frames_total",
			Help:      "Upstream SSE frames by classified type",
		}, []string{"type"}),
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yuanbao2api",
			Subsystem: "upstream",
			Name:      "streams_total",
			Help:      "Finished upstream streams by model and outcome",
		}, []string{"model", "outcome"}),
		firstFragment: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yuanbao2api",
			Subsystem: "upstream",
			Name:      "first_fragment_seconds",
			Help:      "Latency from stream open to the first content fragment",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yuanbao2api",
			Subsystem: "upstream",
			Name:      "stream_duration_seconds",
			Help:      "Lifetime of upstream streams",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"model"}),
		inflightStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yuanbao2api",
			Subsystem: "upstream",
			Name:      "inflight_streams",
			Help:      "Upstream streams currently being translated",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.framesTotal, m.streamsTotal, m.firstFragment, m.streamDuration, m.inflightStreams)
	return m
}

func (m *CompletionMetrics) ObserveRequest(model string, stream bool, code int) {
	if m == nil {
		return
	}
	label := "false"
	if stream {
		label = "true"
	}
	m.requestsTotal.WithLabelValues(model, label, statusLabel(code)).Inc()
}

func (m *CompletionMetrics) ObserveFrame(frameType string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(frameType).Inc()
}

func (m *CompletionMetrics) ObserveFirstFragment(model string, seconds float64) {
	if m == nil {
		return
	}
	m.firstFragment.WithLabelValues(model).Observe(seconds)
}

// StreamStarted marks a stream in flight; the returned func records its end
func (m *CompletionMetrics) StreamStarted(model string) func(outcome string, seconds float64) {
	if m == nil {
		return func(string, float64) {}
	}
	m.inflightStreams.Inc()
	return func(outcome string, seconds float64) {
		m.inflightStreams.Dec()
		m.streamsTotal.WithLabelValues(model, outcome).Inc()
		m.streamDuration.WithLabelValues(model).Observe(seconds)
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
