package card

import (
	"strconv"

	"cardledger/core/events"
	"cardledger/core/types"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
	"cardledger/observability/metrics"
)

type payloadEvent interface {
	Event() *types.Event
}

// MetricsObserver turns committed card events into lifecycle metrics. Attach
// it to the runtime emitter so rolled-back instructions are never counted.
type MetricsObserver struct {
	metrics *metrics.CardMetrics
}

// NewMetricsObserver returns an observer reporting to the card registry.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{metrics: metrics.Card()}
}

// Emit implements events.Emitter.
func (o *MetricsObserver) Emit(evt events.Event) {
	payload, ok := evt.(payloadEvent)
	if !ok || payload.Event() == nil {
		return
	}
	e := payload.Event()
	fee, _ := strconv.ParseUint(e.Attributes["fee"], 10, 64)
	switch e.Type {
	case escrow.EventTypeEscrowInitialized, escrow.EventTypeEscrowCanceled, escrow.EventTypeEscrowClosed:
		o.metrics.ObserveTransition(e.Attributes["state"])
	case escrow.EventTypeEscrowSettled:
		o.metrics.ObserveTransition(e.Attributes["state"])
		o.metrics.ObserveFee("escrow", fee)
	case receipt.EventTypeDeposit:
		o.metrics.ObserveReceipt("deposit")
		o.metrics.ObserveFee("deposit", fee)
	case receipt.EventTypeWithdraw:
		o.metrics.ObserveReceipt("withdraw")
		o.metrics.ObserveFee("withdraw", fee)
	case receipt.EventTypeFunding:
		o.metrics.ObserveReceipt("funding")
		o.metrics.ObserveFee("funding", fee)
	}
}
