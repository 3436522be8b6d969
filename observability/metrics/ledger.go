package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks instruction execution in the ledger runtime.
type LedgerMetrics struct {
	executions *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the lazily-initialised runtime metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardledger",
				Subsystem: "runtime",
				Name:      "instructions_total",
				Help:      "Top-level instructions executed by program and result.",
			}, []string{"program", "result"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cardledger",
				Subsystem: "runtime",
				Name:      "instruction_duration_seconds",
				Help:      "Wall-clock time spent executing and committing an instruction.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			}, []string{"program"}),
		}
		prometheus.MustRegister(ledgerRegistry.executions, ledgerRegistry.latency)
	})
	return ledgerRegistry
}

// RecordExecution counts one executed instruction and its latency.
func (m *LedgerMetrics) RecordExecution(program, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if program == "" {
		program = "unknown"
	}
	m.executions.WithLabelValues(program, result).Inc()
	m.latency.WithLabelValues(program).Observe(elapsed.Seconds())
}

// Executions exposes the execution counter for assertions in tests.
func (m *LedgerMetrics) Executions() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.executions
}
