package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CardMetrics tracks the card program: dispatched instructions, escrow
// lifecycle transitions, receipts and fees routed to the fee collector.
type CardMetrics struct {
	instructions *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	receipts     *prometheus.CounterVec
	feesRouted   *prometheus.CounterVec
}

var (
	cardOnce     sync.Once
	cardRegistry *CardMetrics
)

// Card returns the lazily-initialised card program metrics registry.
func Card() *CardMetrics {
	cardOnce.Do(func() {
		cardRegistry = &CardMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardledger",
				Subsystem: "card",
				Name:      "instructions_total",
				Help:      "Card program instructions by name and outcome.",
			}, []string{"instruction", "outcome"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardledger",
				Subsystem: "escrow",
				Name:      "transitions_total",
				Help:      "Escrow state transitions by target state.",
			}, []string{"state"}),
			receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardledger",
				Subsystem: "receipt",
				Name:      "created_total",
				Help:      "Receipts created by purpose.",
			}, []string{"purpose"}),
			feesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardledger",
				Subsystem: "card",
				Name:      "fees_routed_base_units_total",
				Help:      "Fee base units moved to the fee collector by flow.",
			}, []string{"flow"}),
		}
		prometheus.MustRegister(
			cardRegistry.instructions,
			cardRegistry.transitions,
			cardRegistry.receipts,
			cardRegistry.feesRouted,
		)
	})
	return cardRegistry
}

func (m *CardMetrics) ObserveInstruction(name, outcome string) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	m.instructions.WithLabelValues(name, outcome).Inc()
}

func (m *CardMetrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

func (m *CardMetrics) ObserveReceipt(purpose string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(purpose).Inc()
}

func (m *CardMetrics) ObserveFee(flow string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.feesRouted.WithLabelValues(flow).Add(float64(amount))
}

func (m *CardMetrics) InstructionCounter() *prometheus.CounterVec { return m.instructions }

func (m *CardMetrics) TransitionCounter() *prometheus.CounterVec { return m.transitions }

func (m *CardMetrics) ReceiptCounter() *prometheus.CounterVec { return m.receipts }

func (m *CardMetrics) FeeCounter() *prometheus.CounterVec { return m.feesRouted }
