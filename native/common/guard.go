package common

import "errors"

var ErrFlowPaused = errors.New("card: flow paused")

// PauseView reports whether an operator has halted a flow such as "escrow"
// or "deposit".
type PauseView interface {
	IsPaused(flow string) bool
}

// Guard fails with ErrFlowPaused when the flow is halted.
func Guard(p PauseView, flow string) error {
	if p == nil || flow == "" {
		return nil
	}
	if p.IsPaused(flow) {
		return ErrFlowPaused
	}
	return nil
}
