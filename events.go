package sqsconsumer

import (
	"runtime/debug"
	"slices"
	"sync"

	"github.com/slackmgr/types"
)

// EventType identifies a consumer notification.
type EventType string

const (
	EventStarted           EventType = "started"
	EventStopped           EventType = "stopped"
	EventEmpty             EventType = "empty"
	EventResponseProcessed EventType = "response_processed"
	EventMessageReceived   EventType = "message_received"
	EventMessageProcessed  EventType = "message_processed"
	EventError             EventType = "error"
	EventTimeoutError      EventType = "timeout_error"
	EventProcessingError   EventType = "processing_error"
)

// Event is a single notification emitted by a [Consumer].
// Err is set for the three error types. Message is set for per-message events
// and, when the failure concerns a specific message, for [EventError].
type Event struct {
	Type    EventType
	Err     error
	Message *Message
}

// Listener receives consumer events. Listeners run synchronously on the
// goroutine that emitted the event and may be called concurrently. A panic in
// a listener is recovered and logged; later listeners still run.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

type eventSink struct {
	logger types.Logger

	mu        sync.RWMutex
	nextID    int
	listeners []subscription
}

func newEventSink(logger types.Logger) *eventSink {
	return &eventSink{logger: logger}
}

func (s *eventSink) subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
				return sub.id == id
			})
		})
	}
}

func (s *eventSink) emit(e Event) {
	s.mu.RLock()
	subs := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, sub := range subs {
		s.deliver(sub.fn, e)
	}
}

func (s *eventSink) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("event", string(e.Type)).Errorf("SQS consumer event listener panic: %v\nStack: %s", r, debug.Stack())
		}
	}()

	fn(e)
}
