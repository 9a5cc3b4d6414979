package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/event"
)

const (
	login1Interface = "org.freedesktop.login1.Manager"
	login1Path      = dbus.ObjectPath("/org/freedesktop/login1")
	prepareForSleep = login1Interface + ".PrepareForSleep"

	initialReconnectDelay = time.Second
	maxReconnectDelay     = 2 * time.Minute
	reconnectMultiplier   = 2
	maxReconnectAttempts  = 5
)

// ErrSleepWatchUnavailable is returned when the logind connection could
// not be established within the reconnect budget.
var ErrSleepWatchUnavailable = errors.New("logind sleep watch unavailable")

// SleepWatcher follows logind PrepareForSleep signals, keeping the
// tracker in step and emitting a resume event so the reconcile loop can
// recompute immediately after wake.
type SleepWatcher struct {
	tracker *SleepTracker
	events  *event.Dispatcher
}

func NewSleepWatcher(tracker *SleepTracker, events *event.Dispatcher) *SleepWatcher {
	return &SleepWatcher{tracker: tracker, events: events}
}

// Run blocks watching the system bus until ctx is cancelled. A lost
// connection is retried with exponential backoff; once the budget is
// spent the watcher gives up and the daemon runs without sleep
// detection.
func (w *SleepWatcher) Run(ctx context.Context) error {
	retries := 0
	backoff := initialReconnectDelay
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retries++
		if retries >= maxReconnectAttempts {
			log.Warn().Err(err).Msg("Sleep detection disabled, reconnect budget spent")
			return ErrSleepWatchUnavailable
		}
		log.Warn().
			Err(err).
			Dur("backoff", backoff).
			Int("attempt", retries).
			Msg("Logind connection lost, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= reconnectMultiplier
		if backoff > maxReconnectDelay {
			backoff = maxReconnectDelay
		}
	}
}

func (w *SleepWatcher) watch(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connecting system bus: %w", err)
	}
	defer conn.Close()

	err = conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(login1Interface),
		dbus.WithMatchMember("PrepareForSleep"),
		dbus.WithMatchObjectPath(login1Path),
	)
	if err != nil {
		return fmt.Errorf("subscribing to PrepareForSleep: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	log.Debug().Msg("Watching logind for sleep transitions")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return errors.New("signal stream closed")
			}
			w.handle(sig)
		}
	}
}

// handle processes one bus signal. Entering sleep only flips the
// tracker; the resume side also wakes the reconcile loop, since the
// target may have moved hours while the machine was down.
func (w *SleepWatcher) handle(sig *dbus.Signal) {
	if sig.Name != prepareForSleep || len(sig.Body) == 0 {
		return
	}
	entering, ok := sig.Body[0].(bool)
	if !ok {
		return
	}

	if entering {
		w.tracker.MarkSleeping(time.Now())
		log.Info().Msg("System preparing for sleep")
		return
	}

	now := time.Now()
	var slept time.Duration
	if at := w.tracker.LastSleep(); !at.IsZero() {
		slept = now.Sub(at)
	}
	w.tracker.MarkResumed(now)
	log.Info().Dur("slept", slept).Msg("System resumed from sleep")
	w.events.TrySend(event.Event{Kind: event.KindSleepResuming, Source: "logind"})
}
