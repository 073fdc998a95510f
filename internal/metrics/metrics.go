// Package metrics exposes the control plane's Prometheus instruments.
// All methods are safe on a nil receiver so components can run unmetered.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	callsCreated      prometheus.Counter
	racesResolved     prometheus.Counter
	selectionFailures prometheus.Counter
	authFailures      prometheus.Counter
	sweeperRemovals   prometheus.Counter
	activeBackends    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		callsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hallpass_calls_created_total",
			Help: "Call records created (first writer of a generation).",
		}),
		racesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hallpass_creation_races_total",
			Help: "Creation attempts that lost the insert race and converged on the winner.",
		}),
		selectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hallpass_selection_failures_total",
			Help: "Backend selections that found no eligible relay node.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hallpass_auth_failures_total",
			Help: "Credential verifications rejected (expired, bad signature, or stale generation).",
		}),
		sweeperRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hallpass_sweeper_removals_total",
			Help: "Inactive call records reclaimed by the sweeper.",
		}),
		activeBackends: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hallpass_backends_active",
			Help: "Relay nodes currently eligible for selection.",
		}),
	}

	reg.MustRegister(
		m.callsCreated,
		m.racesResolved,
		m.selectionFailures,
		m.authFailures,
		m.sweeperRemovals,
		m.activeBackends,
	)
	return m
}

func (m *Metrics) CallCreated() {
	if m == nil {
		return
	}
	m.callsCreated.Inc()
}

func (m *Metrics) RaceResolved() {
	if m == nil {
		return
	}
	m.racesResolved.Inc()
}

func (m *Metrics) SelectionFailure() {
	if m == nil {
		return
	}
	m.selectionFailures.Inc()
}

func (m *Metrics) AuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) SweeperRemoval() {
	if m == nil {
		return
	}
	m.sweeperRemovals.Inc()
}

func (m *Metrics) SetActiveBackends(n int) {
	if m == nil {
		return
	}
	m.activeBackends.Set(float64(n))
}
