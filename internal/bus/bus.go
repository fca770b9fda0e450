// Package bus provides an internal event bus for pipeline communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the VoiceTask pipeline
const (
	// VAD events
	EventTypeVoiceStart EventType = "vad.voice_start"

	// Turn events
	EventTypeTurnStarted    EventType = "turn.started"
	EventTypeTurnState      EventType = "turn.state_changed"
	EventTypeTurnCompleted  EventType = "turn.completed"
	EventTypeTurnCanceled   EventType = "turn.canceled"
	EventTypeSilenceWarning EventType = "turn.silence_warning"

	// Transcript events
	EventTypeTranscript EventType = "stt.transcript"

	// Cancellation-intent events
	EventTypeCancelScore EventType = "intent.score"

	// TTS events
	EventTypeTTSStarted   EventType = "tts.started"
	EventTypeTTSCompleted EventType = "tts.completed"
	EventTypeTTSFailed    EventType = "tts.failed"

	// Task events
	EventTypeTaskExtracted EventType = "task.extracted"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// New creates a new event bus
func New() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Publish dispatches an event to all subscribed handlers without
// blocking the caller.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync dispatches an event and waits for all handlers to complete.
func (b *EventBus) PublishSync(event Event) {
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
