// Package notifier broadcasts completed governance runs to subscribers such
// as the HTTP event stream and the watch command.
package notifier

import (
	"sync"

	"github.com/leapstack-labs/leapgov/pkg/core"
)

// Event describes one completed run.
type Event struct {
	RunID     string `json:"run_id"`
	Dataset   string `json:"dataset"`
	Version   string `json:"version"`
	Rows      int    `json:"rows"`
	Passed    bool   `json:"passed"`
	Timestamp string `json:"timestamp"`
}

// EventFromReport summarises a report as an event.
func EventFromReport(r *core.Report) Event {
	return Event{
		RunID:     r.RunID,
		Dataset:   r.Dataset,
		Version:   r.Version,
		Rows:      r.Rows,
		Passed:    r.Passed(),
		Timestamp: r.Timestamp,
	}
}

// Notifier fans events out to every subscribed listener.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
	buffer    int
}

// DefaultBuffer is the per-listener queue length.
const DefaultBuffer = 16

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
		buffer:    DefaultBuffer,
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, n.buffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Broadcast sends ev to all listeners.
// Non-blocking: a listener whose queue is full misses the event.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
