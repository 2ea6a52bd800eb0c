package quorum

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus instruments, registered the same
// way the teacher wires a registerer into poll.NewSet(factory, log,
// registerer).
type Metrics struct {
	RoundsTotal       prometheus.Counter
	AgreementStatus   prometheus.Gauge
	SocketState       *prometheus.GaugeVec
	PeerRotationsTotal prometheus.Counter
}

// NewMetrics constructs and registers the engine's metrics against reg.
// reg may be nil, in which case metrics are created but never registered
// (useful for tests that don't care about a registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quorum_rounds_total",
			Help: "Total number of computer-state polling rounds started.",
		}),
		AgreementStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quorum_agreement_status",
			Help: "Current computer-state agreement count (0..3).",
		}),
		SocketState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quorum_socket_state",
			Help: "Current lifecycle state (0=idle,1=connecting,2=open,3=closed) per socket slot.",
		}, []string{"slot"}),
		PeerRotationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quorum_peer_rotations_total",
			Help: "Total number of times a socket's peer was rotated.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RoundsTotal, m.AgreementStatus, m.SocketState, m.PeerRotationsTotal)
	}
	return m
}
