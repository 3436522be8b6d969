package events

import "cardledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the journal, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Record adapts a wire event to the Event interface.
type Record struct {
	Evt *types.Event
}

// EventType implements Event.
func (r Record) EventType() string {
	if r.Evt == nil {
		return ""
	}
	return r.Evt.Type
}

// Event returns the wrapped payload.
func (r Record) Event() *types.Event { return r.Evt }

// Buffer holds events produced by an instruction until the runtime decides
// whether the instruction commits. Not safe for concurrent use.
type Buffer struct {
	pending []*types.Event
}

// Add queues a copy of evt. Nil events are ignored.
func (b *Buffer) Add(evt *types.Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt.Clone())
}

// Len reports the number of queued events.
func (b *Buffer) Len() int { return len(b.pending) }

// Flush hands every queued event to the emitter in production order and
// clears the buffer.
func (b *Buffer) Flush(emitter Emitter) {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	for _, evt := range b.pending {
		emitter.Emit(Record{Evt: evt})
	}
	b.pending = nil
}

// Discard drops every queued event.
func (b *Buffer) Discard() { b.pending = nil }

// Multi fans a single emission out to several emitters.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
