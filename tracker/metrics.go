package tracker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/wire"
)

// metrics holds a Tracker's own prometheus registry so that multiple
// Tracker instances (e.g. one per simulated worker in a test) never
// collide on the process-wide default registerer.
type metrics struct {
	registry *prometheus.Registry

	owners               prometheus.Gauge
	forks                prometheus.Gauge
	pendingUsers         prometheus.Gauge
	pendingForkRequests  prometheus.Gauge
	pendingAcceptedUsers prometheus.Gauge
	received             *prometheus.CounterVec
	sent                 *prometheus.CounterVec
	invariantViolations  *prometheus.CounterVec
}

func newMetrics(self id.WorkerID) *metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"worker": fmt.Sprint(uint16(self))}

	m := &metrics{
		registry: reg,
		owners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_tracker_owners", Help: "Owned references currently tracked.", ConstLabels: constLabels,
		}),
		forks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_tracker_forks", Help: "Live forks across all owned references.", ConstLabels: constLabels,
		}),
		pendingUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_tracker_pending_users", Help: "User references awaiting USER_ACCEPT.", ConstLabels: constLabels,
		}),
		pendingForkRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_tracker_pending_fork_requests", Help: "Forking users awaiting FORK_ACCEPT.", ConstLabels: constLabels,
		}),
		pendingAcceptedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_tracker_pending_accepted_users", Help: "USER_ACCEPTs that arrived before their local User existed.", ConstLabels: constLabels,
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rref_tracker_messages_received_total", Help: "Inbound wire messages processed, by kind.", ConstLabels: constLabels,
		}, []string{"kind"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rref_tracker_messages_sent_total", Help: "Outbound wire messages sent, by kind.", ConstLabels: constLabels,
		}, []string{"kind"}),
		invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rref_tracker_invariant_violations_total", Help: "Errors returned by tracker operations, by status reason.", ConstLabels: constLabels,
		}, []string{"reason"}),
	}
	reg.MustRegister(m.owners, m.forks, m.pendingUsers, m.pendingForkRequests, m.pendingAcceptedUsers, m.received, m.sent, m.invariantViolations)
	return m
}

// Registry exposes the tracker's private prometheus registry for a scrape
// handler to serve.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.metrics.registry
}

func (m *metrics) setOwners(n int)               { m.owners.Set(float64(n)) }
func (m *metrics) setForks(n int)                { m.forks.Set(float64(n)) }
func (m *metrics) setPendingUsers(n int)         { m.pendingUsers.Set(float64(n)) }
func (m *metrics) setPendingForkRequests(n int)  { m.pendingForkRequests.Set(float64(n)) }
func (m *metrics) setPendingAcceptedUsers(n int) { m.pendingAcceptedUsers.Set(float64(n)) }
func (m *metrics) incReceived(kind wire.MessageKind) {
	m.received.WithLabelValues(kind.String()).Inc()
}
func (m *metrics) incSent(kind wire.MessageKind) {
	m.sent.WithLabelValues(kind.String()).Inc()
}
func (m *metrics) incInvariantViolation(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.invariantViolations.WithLabelValues(reason).Inc()
}
