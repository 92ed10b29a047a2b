package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Storefront records cart, checkout and backend activity.
type Storefront struct {
	cartMutations  *prometheus.CounterVec
	checkoutSteps  *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	mirrorFailures *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	events         *prometheus.CounterVec
}

// New registers the storefront metrics on the provided registerer. A nil
// registerer yields a recorder whose methods are no-ops.
func New(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	m := &Storefront{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		checkoutSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "Checkout sequencer transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_backend_request_duration_seconds",
			Help:    "Latency of calls to the storefront REST backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		mirrorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mirror_failures_total",
			Help: "Best-effort cart mirror calls that failed.",
		}, []string{"op"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_backend_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Checkout events handed to the publisher by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(m.cartMutations, m.checkoutSteps, m.backendLatency, m.mirrorFailures, m.breakerState, m.events)
	return m
}

func (m *Storefront) CartMutation(op string, err error) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), outcome(err)).Inc()
}

func (m *Storefront) CheckoutTransition(action string, err error) {
	if m == nil || m.checkoutSteps == nil {
		return
	}
	m.checkoutSteps.WithLabelValues(normalizeLabel(action), outcome(err)).Inc()
}

// ObserveBackend records one backend round trip; status 0 means the request never completed.
func (m *Storefront) ObserveBackend(operation string, status int, duration time.Duration) {
	if m == nil || m.backendLatency == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendLatency.WithLabelValues(normalizeLabel(operation), label).Observe(duration.Seconds())
}

func (m *Storefront) MirrorFailure(op string) {
	if m == nil || m.mirrorFailures == nil {
		return
	}
	m.mirrorFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *Storefront) BreakerState(name string, state int) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(normalizeLabel(name)).Set(float64(state))
}

func (m *Storefront) EventPublished(eventType string, err error) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
