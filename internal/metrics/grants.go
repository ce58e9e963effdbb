// Package metrics holds the prometheus instruments for the grant engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Grants struct {
	Total        *prometheus.CounterVec // grant_type, result
	Renewals     prometheus.Counter
	Conflicts    prometheus.Counter
	UsersCreated prometheus.Counter
}

// NewGrants builds and registers the grant metrics. Passing nil registers
// against the default registerer.
func NewGrants(reg prometheus.Registerer) *Grants {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	g := &Grants{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grants_total",
			Help: "Grant requests by grant_type and result",
		}, []string{"grant_type", "result"}),
		Renewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_renewals_total",
			Help: "In-place token renewals performed on the refresh path",
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refresh_conflicts_total",
			Help: "Refresh attempts that lost a renewal race and were retried",
		}),
		UsersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "federated_users_created_total",
			Help: "Local users created on first federated login",
		}),
	}
	reg.MustRegister(g.Total, g.Renewals, g.Conflicts, g.UsersCreated)
	return g
}

// Observe is a nil-safe counter bump for the per-grant result.
func (g *Grants) Observe(grantType, result string) {
	if g == nil {
		return
	}
	g.Total.WithLabelValues(grantType, result).Inc()
}

func (g *Grants) Renewed() {
	if g != nil {
		g.Renewals.Inc()
	}
}

func (g *Grants) Conflicted() {
	if g != nil {
		g.Conflicts.Inc()
	}
}

func (g *Grants) UserCreated() {
	if g != nil {
		g.UsersCreated.Inc()
	}
}
