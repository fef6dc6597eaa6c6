package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRelayMetricsObserve(t *testing.T) {
	m := NewRelayMetrics(prometheus.NewRegistry())
	m.ObserveLead("accepted")
	m.ObserveLead("accepted")
	m.ObserveCaptcha("bypass")
	m.ObserveChat("gateway", 429)
	m.ObserveChatStream("gateway", 1.5)

	if got := counterValue(t, m.leadSubmissions.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("accepted = %v, want 2", got)
	}
	if got := counterValue(t, m.chatRequests.WithLabelValues("gateway", "429")); got != 1 {
		t.Fatalf("chat 429 = %v, want 1", got)
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 400: "4xx", 402: "402", 429: "429", 502: "5xx"}
	for status, want := range cases {
		if got := statusLabel(status); got != want {
			t.Fatalf("statusLabel(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.ObserveLead("accepted")
	m.ObserveCaptcha("verified")
	m.ObserveChat("gemini", 200)
	m.ObserveChatStream("gemini", 0.1)
}
