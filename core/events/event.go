package events

// Event is one offer lifecycle notification: made, taken or refunded.
type Event interface {
	EventType() string
}

// Emitter receives every lifecycle notification the transition engine
// produces. Implementations fan the events out to whatever is listening,
// such as an indexer or a websocket feed.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events. The engine falls back to it so event
// delivery is always optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
