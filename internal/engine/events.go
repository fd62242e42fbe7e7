package engine

import "time"

// EventType distinguishes why an event fired.
type EventType string

const (
	// EventReading fires when a new reading was accepted into the cache.
	EventReading EventType = "reading"

	// EventState fires on any other display-relevant change: a poll
	// starting, a duplicate reading, a session update.
	EventState EventType = "state"

	// EventError fires when a poll tick fails.
	EventError EventType = "error"
)

// Event is pushed to subscribers whenever the display state changes.
type Event struct {
	Type    EventType
	State   State
	At      time.Time
	Display DisplayState
}

// Subscribe registers an observer channel with the given buffer (minimum
// 1). The channel is closed when the engine stops. Slow observers miss
// events rather than blocking the poll loop, so consumers should treat
// each event as "re-render from Display" instead of counting them.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		close(ch)
		return ch
	}
	e.observers = append(e.observers, ch)
	return ch
}

// emit snapshots the display state and pushes it to all observers.
func (e *Engine) emit(typ EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(typ)
}

// emitLocked requires e.mu held. Events for observers with full buffers
// are dropped. Sending under the lock keeps every send ordered before
// the channel close in Stop.
func (e *Engine) emitLocked(typ EventType) {
	if e.stopped {
		return
	}
	display := e.displayLocked()
	ev := Event{Type: typ, State: display.State, At: e.now(), Display: display}
	for _, ch := range e.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}
