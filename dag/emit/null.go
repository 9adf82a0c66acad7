package emit

import "context"

// NullEmitter discards every event. Zero overhead, safe for concurrent use.
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit discards event.
func (n *NullEmitter) Emit(event Event) {}

// EmitBatch discards events.
func (n *NullEmitter) EmitBatch(_ context.Context, events []Event) error { return nil }

// Flush is a no-op.
func (n *NullEmitter) Flush(_ context.Context) error { return nil }
