// Package metrics exposes Prometheus collectors for store transactions and
// registration outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/conference/registration"
	"github.com/jacentio/conference/store"
)

const namespace = "conference"

// Metrics implements store.TxObserver and registration.Recorder.
type Metrics struct {
	txAttempts  prometheus.Counter
	txConflicts prometheus.Counter
	txExhausted prometheus.Counter
	outcomes    *prometheus.CounterVec
}

var (
	_ store.TxObserver      = (*Metrics)(nil)
	_ registration.Recorder = (*Metrics)(nil)
)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		txAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_attempts_total",
			Help:      "Transaction bodies run, including retries.",
		}),
		txConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_conflicts_total",
			Help:      "Transaction commits rejected by a concurrent modification.",
		}),
		txExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_exhausted_total",
			Help:      "Transactions that ran out of attempts.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "operations_total",
			Help:      "Registration operations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.txAttempts, m.txConflicts, m.txExhausted, m.outcomes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) TxAttempt()   { m.txAttempts.Inc() }
func (m *Metrics) TxConflict()  { m.txConflicts.Inc() }
func (m *Metrics) TxExhausted() { m.txExhausted.Inc() }

// RecordOutcome counts one finished registration operation.
func (m *Metrics) RecordOutcome(op, outcome string) {
	m.outcomes.WithLabelValues(op, outcome).Inc()
}
