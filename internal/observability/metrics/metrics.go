package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the lead and chat relays.
type RelayMetrics struct {
	leadSubmissions *prometheus.CounterVec
	captchaOutcomes *prometheus.CounterVec
	chatRequests    *prometheus.CounterVec
	chatStream      *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		leadSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explora",
			Subsystem: "lead_relay",
			Name:      "submissions_total",
			Help:      "Lead submissions by outcome",
		}, []string{"outcome"}),
		captchaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explora",
			Subsystem: "lead_relay",
			Name:      "captcha_total",
			Help:      "Accepted verification tokens by how they were accepted",
		}, []string{"outcome"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explora",
			Subsystem: "chat_relay",
			Name:      "requests_total",
			Help:      "Chat relay requests by provider and response status",
		}, []string{"provider", "status"}),
		chatStream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "explora",
			Subsystem: "chat_relay",
			Name:      "stream_duration_seconds",
			Help:      "Time spent streaming a completion to the client",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.leadSubmissions, m.captchaOutcomes, m.chatRequests, m.chatStream)
	return m
}

func (m *RelayMetrics) ObserveLead(outcome string) {
	if m == nil {
		return
	}
	m.leadSubmissions.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveCaptcha(outcome string) {
	if m == nil {
		return
	}
	m.captchaOutcomes.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveChat(provider string, status int) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(provider, statusLabel(status)).Inc()
}

func (m *RelayMetrics) ObserveChatStream(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.chatStream.WithLabelValues(provider).Observe(seconds)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status == 429:
		return "429"
	case status == 402:
		return "402"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
