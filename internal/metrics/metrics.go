package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine records path selection outcomes in Prometheus metrics. A nil
// *Engine is valid and records nothing.
type Engine struct {
	routes      *prometheus.CounterVec
	phases      *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	assignments *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewEngine registers the engine metrics on reg. If reg is nil, the default
// registerer is used. Already registered collectors are reused.
func NewEngine(reg prometheus.Registerer) (*Engine, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Engine{
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveit_routes_processed_total",
			Help: "Due routes processed, by outcome",
		}, []string{"outcome"}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveit_phases_processed_total",
			Help: "Route phases processed, by phase and outcome",
		}, []string{"phase", "outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveit_unmatched_alerts_total",
			Help: "Unmatched-rate alerts raised, by phase",
		}, []string{"phase"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveit_stop_assignments_total",
			Help: "Passenger stop assignments, by phase and whether the stop is on the selected path",
		}, []string{"phase", "on_path"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveit_side_effect_failures_total",
			Help: "Failed writes and notifications, by kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "driveit_route_processing_seconds",
			Help:    "Time spent processing a single due route",
			Buckets: prometheus.DefBuckets,
		}),
	}

	var err error
	if e.routes, err = registerCounterVec(reg, e.routes); err != nil {
		return nil, err
	}
	if e.phases, err = registerCounterVec(reg, e.phases); err != nil {
		return nil, err
	}
	if e.alerts, err = registerCounterVec(reg, e.alerts); err != nil {
		return nil, err
	}
	if e.assignments, err = registerCounterVec(reg, e.assignments); err != nil {
		return nil, err
	}
	if e.failures, err = registerCounterVec(reg, e.failures); err != nil {
		return nil, err
	}
	if err := reg.Register(e.duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		e.duration = are.ExistingCollector.(prometheus.Histogram)
	}
	return e, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (e *Engine) RouteProcessed(outcome string, took time.Duration) {
	if e == nil {
		return
	}
	e.routes.WithLabelValues(outcome).Inc()
	e.duration.Observe(took.Seconds())
}

func (e *Engine) PhaseProcessed(phase, outcome string) {
	if e == nil {
		return
	}
	e.phases.WithLabelValues(phase, outcome).Inc()
}

func (e *Engine) UnmatchedAlert(phase string) {
	if e == nil {
		return
	}
	e.alerts.WithLabelValues(phase).Inc()
}

func (e *Engine) Assignment(phase string, onPath bool) {
	if e == nil {
		return
	}
	e.assignments.WithLabelValues(phase, strconv.FormatBool(onPath)).Inc()
}

// Failure counts a failed side effect: "stop_write", "path_write", "push", "mail", "claim".
func (e *Engine) Failure(kind string) {
	if e == nil {
		return
	}
	e.failures.WithLabelValues(kind).Inc()
}
