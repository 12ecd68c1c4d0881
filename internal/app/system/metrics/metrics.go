// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the Prometheus collectors of the service. Its session
// methods satisfy authsession.Metrics; a nil *Recorder records nothing.
type Recorder struct {
	StateTransitions *prometheus.CounterVec
	Operations       *prometheus.CounterVec
	Hydrations       *prometheus.CounterVec
	Compensations    *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	ActiveClients    prometheus.Gauge
	EvictedClients   prometheus.Counter
	APIRequests      *prometheus.CounterVec
	APILatency       *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_auth_state_transitions_total",
				Help: "Session state changes by resulting status",
			},
			[]string{"status"},
		),
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_auth_operations_total",
				Help: "Auth and role operations by outcome",
			},
			[]string{"op", "result"},
		),
		Hydrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_profile_hydrations_total",
				Help: "Profile hydration attempts by outcome",
			},
			[]string{"result"},
		),
		Compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_role_add_compensations_total",
				Help: "Role-add rollbacks by outcome",
			},
			[]string{"result"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_rate_limited_total",
				Help: "Requests rejected by the login and reset throttle",
			},
			[]string{"limit"},
		),
		ActiveClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bisontutor_active_clients",
				Help: "Browser clients holding a live session manager",
			},
		),
		EvictedClients: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bisontutor_evicted_clients_total",
				Help: "Session managers closed for inactivity",
			},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bisontutor_api_requests_total",
				Help: "Calls to the help-request/search API",
			},
			[]string{"endpoint", "code"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bisontutor_api_request_duration_seconds",
				Help:    "Latency of calls to the help-request/search API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bisontutor_api_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
}

// NewRegistry returns a fresh registry and a Recorder registered on it.
func NewRegistry() (*prometheus.Registry, *Recorder) {
	reg := prometheus.NewRegistry()
	return reg, New(reg)
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (r *Recorder) StateChanged(status string) {
	if r == nil {
		return
	}
	r.StateTransitions.WithLabelValues(status).Inc()
}

func (r *Recorder) Operation(op, result string) {
	if r == nil {
		return
	}
	r.Operations.WithLabelValues(op, result).Inc()
}

func (r *Recorder) Hydration(result string) {
	if r == nil {
		return
	}
	r.Hydrations.WithLabelValues(result).Inc()
}

func (r *Recorder) Compensation(result string) {
	if r == nil {
		return
	}
	r.Compensations.WithLabelValues(result).Inc()
}

// Limited counts a throttled request.
func (r *Recorder) Limited(limit string) {
	if r == nil {
		return
	}
	r.RateLimited.WithLabelValues(limit).Inc()
}

// ClientOpened and ClientClosed track live session managers.
func (r *Recorder) ClientOpened() {
	if r == nil {
		return
	}
	r.ActiveClients.Inc()
}

func (r *Recorder) ClientClosed(evicted bool) {
	if r == nil {
		return
	}
	r.ActiveClients.Dec()
	if evicted {
		r.EvictedClients.Inc()
	}
}

// APICall records one outbound API call. code is the HTTP status as a
// string, or "error" when no response arrived.
func (r *Recorder) APICall(endpoint, code string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.APIRequests.WithLabelValues(endpoint, code).Inc()
	r.APILatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Breaker records a circuit breaker state change.
func (r *Recorder) Breaker(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}
