package agent

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/wire"
)

// metrics holds an agent's own prometheus registry, mirroring the
// tracker's: every InProcessAgent/WebSocketAgent gets one so several
// instances in the same process (tests spin up one agent per simulated
// worker) never collide on the default registerer.
type metrics struct {
	registry *prometheus.Registry

	sent           *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	pendingFutures prometheus.Gauge
}

func newMetrics(self id.WorkerID) *metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"worker": fmt.Sprint(uint16(self))}

	m := &metrics{
		registry: reg,
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rref_agent_messages_sent_total", Help: "Messages handed to the transport, by kind.", ConstLabels: constLabels,
		}, []string{"kind"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rref_agent_future_resolutions_total", Help: "Future resolutions, by outcome (ok or error).", ConstLabels: constLabels,
		}, []string{"outcome"}),
		pendingFutures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rref_agent_pending_futures", Help: "Futures awaiting a reply.", ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(m.sent, m.resolutions, m.pendingFutures)
	return m
}

func (m *metrics) incSent(kind wire.MessageKind) {
	m.sent.WithLabelValues(kind.String()).Inc()
}

func (m *metrics) incResolution(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *metrics) addPendingFutures(delta int) {
	m.pendingFutures.Add(float64(delta))
}
