package ui

import (
	"sync"
	"time"

	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// Event summarizes one regeneration triggered by watch mode.
type Event struct {
	RunID  string
	At     time.Time
	Counts state.Counts
	Err    string
}

// eventFromReport builds the event published after a watch regeneration.
func eventFromReport(report *engine.Report, err error, at time.Time) Event {
	ev := Event{At: at}
	if err != nil {
		ev.Err = err.Error()
		return ev
	}
	ev.RunID = report.RunID
	ev.Counts = report.Counts()
	if !report.OK() {
		ev.Err = "some config records failed"
	}
	return ev
}

// Notifier fans regeneration events out to every open update stream.
// Slow listeners miss intermediate events but always see the latest one
// through Last.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
	last      *Event
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving published events. Call
// Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Publish records ev as the latest event and offers it to every listener
// without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	n.last = &ev
	n.mu.Unlock()

	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Last returns the most recent event, if any.
func (n *Notifier) Last() (Event, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.last == nil {
		return Event{}, false
	}
	return *n.last, true
}
