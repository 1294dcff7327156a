package wallet

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments a Session. A nil *Metrics records nothing.
type Metrics struct {
	connects *prometheus.CounterVec
	events   *prometheus.CounterVec
	state    *prometheus.GaugeVec
}

// NewMetrics creates the session collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataforge",
			Subsystem: "wallet",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataforge",
			Subsystem: "wallet",
			Name:      "provider_events_total",
			Help:      "Notifications received from the wallet provider.",
		}, []string{"event"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataforge",
			Subsystem: "wallet",
			Name:      "session_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.connects, m.events, m.state)
	}
	return m
}

func (m *Metrics) connect(outcome string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	for _, st := range []State{StateDisconnected, StateConnecting, StateConnected} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}
