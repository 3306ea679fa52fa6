package authapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts auth endpoint outcomes. Outcome labels come from
// session.FailureKind, so cardinality stays fixed.
type Metrics struct {
	refresh *prometheus.CounterVec
	login   *prometheus.CounterVec
}

// NewMetrics registers the auth counters on reg. A nil reg yields
// unregistered (still usable) counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_refresh_total",
			Help: "Refresh attempts on the access token endpoint, by outcome.",
		}, []string{"outcome"}),
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_login_total",
			Help: "Credential logins, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.refresh, m.login)
	}
	return m
}

func (m *Metrics) observeRefresh(outcome string) {
	if m != nil {
		m.refresh.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) observeLogin(outcome string) {
	if m != nil {
		m.login.WithLabelValues(outcome).Inc()
	}
}
