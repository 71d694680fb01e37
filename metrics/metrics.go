package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorboard"

// Poll results.
const (
	PollOK        = "ok"
	PollNetwork   = "network"
	PollMalformed = "malformed"
	PollStale     = "stale"
)

// Channel failure reasons.
const (
	ChannelMalformed = "malformed"
	ChannelRender    = "render"
)

// Metrics is safe to use as a nil pointer, which records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	channelFailures *prometheus.CounterVec
	widgets         prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "History polls by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time taken to fetch and decode the history.",
			Buckets:   prometheus.DefBuckets,
		}),
		channelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_failures_total",
			Help:      "Channels skipped during a poll by reason.",
		}, []string{"reason"}),
		widgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "widgets",
			Help:      "Chart widgets currently registered.",
		}),
	}
	m.registry.MustRegister(m.polls, m.pollDuration, m.channelFailures, m.widgets)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePoll(result string, seconds float64) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(seconds)
}

func (m *Metrics) ChannelFailed(reason string) {
	if m == nil {
		return
	}
	m.channelFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetWidgets(n int) {
	if m == nil {
		return
	}
	m.widgets.Set(float64(n))
}
