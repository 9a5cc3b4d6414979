// Package event carries detector findings to the reconciliation loop
// over a single multi-producer, single-consumer channel.
package event

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Kind represents the type of event
type Kind string

const (
	// KindReload asks the loop to re-read configuration.
	KindReload Kind = "reload"
	// KindSleepResuming reports the machine just woke from sleep.
	KindSleepResuming Kind = "sleep_resuming"
	// KindTimeChanged reports the system clock was set.
	KindTimeChanged Kind = "time_changed"
	// KindShutdown asks the loop to apply final state and exit.
	KindShutdown Kind = "shutdown"
)

// Event is one detector finding, consumed exactly once by the loop.
type Event struct {
	Kind   Kind
	Source string // detector name, for logs
}

// DefaultQueueSize bounds how many undelivered events may pile up
// while the loop is busy applying.
const DefaultQueueSize = 16

// Dispatcher is the channel between detectors and the loop. Sends
// never block: when the queue is full or the dispatcher is closing,
// the event is dropped with a warning. The loop re-derives state from
// scratch on every wake, so a dropped event delays reconciliation at
// worst, it never loses state.
type Dispatcher struct {
	events chan Event

	// Closing this channel signals senders to stop.
	// Using a channel in select is race-free (unlike mutex + bool).
	closing   chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher with the default queue size.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithSize(DefaultQueueSize)
}

// NewDispatcherWithSize creates a dispatcher with a custom queue size.
func NewDispatcherWithSize(size int) *Dispatcher {
	return &Dispatcher{
		events:  make(chan Event, size),
		closing: make(chan struct{}),
	}
}

// TrySend queues an event without blocking. It reports whether the
// event was accepted, so a detector that keeps failing to deliver can
// wind itself down.
func (d *Dispatcher) TrySend(ev Event) bool {
	select {
	case <-d.closing:
		log.Warn().Str("kind", string(ev.Kind)).Str("source", ev.Source).Msg("Dispatcher closing, dropping event")
		return false
	case d.events <- ev:
		return true
	default:
		log.Warn().Str("kind", string(ev.Kind)).Str("source", ev.Source).Msg("Event queue full, dropping event")
		return false
	}
}

// Events returns the receive side for the single consumer.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// Close stops accepting events. Safe to call more than once. The
// events channel itself stays open so a consumer blocked in select
// never sees phantom zero values.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closing)
	})
}
