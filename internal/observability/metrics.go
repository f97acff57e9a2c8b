package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	WebhookRequests *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec
	ActionResults   *prometheus.CounterVec
	ActiveTrials    prometheus.Gauge
	TrialEvents     *prometheus.CounterVec
	ActiveFlows     prometheus.Gauge
	VoiceClips      prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		WebhookRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Automation webhook calls by route and outcome.",
		}, []string{"route", "outcome"}),
		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_request_duration_seconds",
			Help:      "Automation webhook call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"route"}),
		ActionResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_results_total",
			Help:      "Settled wizard actions by kind and outcome.",
		}, []string{"action", "outcome"}),
		ActiveTrials: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trial_sessions_active",
			Help:      "Number of trial sessions currently counting down.",
		}),
		TrialEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_events_total",
			Help:      "Trial session events by type.",
		}, []string{"event"}),
		ActiveFlows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows_active",
			Help:      "Visitor flows held in memory.",
		}),
		VoiceClips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_clips_total",
			Help:      "Voice clips captured.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "status"}),
	}
}

// ObserveWebhook records one webhook call. A nil receiver is a no-op.
func (m *Metrics) ObserveWebhook(route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(route, outcome).Inc()
	m.WebhookLatency.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveAction(action string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.ActionResults.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) TrialEvent(event string) {
	if m == nil {
		return
	}
	m.TrialEvents.WithLabelValues(event).Inc()
	switch event {
	case "started":
		m.ActiveTrials.Inc()
	case "ended", "expired", "closed":
		m.ActiveTrials.Dec()
	}
}

func (m *Metrics) FlowOpened() {
	if m != nil {
		m.ActiveFlows.Inc()
	}
}

func (m *Metrics) FlowClosed() {
	if m != nil {
		m.ActiveFlows.Dec()
	}
}

func (m *Metrics) ClipCaptured() {
	if m != nil {
		m.VoiceClips.Inc()
	}
}

// Registry exposes the underlying registry for assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
