package detect

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/dokzlo13/duskd/internal/event"
)

// clockTimerHorizon is how far out the detection timer is armed. The
// timer is not meant to fire; only its cancellation on a realtime clock
// step matters. Expiry this far out means the clock leapt past the
// deadline, which is a time change too.
const clockTimerHorizon = 500 * 24 * time.Hour

// ClockWatcher reports discontinuous CLOCK_REALTIME changes, such as
// manual date changes or large NTP steps. A timerfd armed with
// TFD_TIMER_CANCEL_ON_SET makes the kernel fail the pending read with
// ECANCELED whenever the realtime clock is set.
type ClockWatcher struct {
	tracker *SleepTracker
	events  *event.Dispatcher
}

func NewClockWatcher(tracker *SleepTracker, events *event.Dispatcher) *ClockWatcher {
	return &ClockWatcher{tracker: tracker, events: events}
}

// Run blocks reading the timer until ctx is cancelled. If the timerfd
// cannot be created or armed the detector is disabled and Run returns
// nil; the daemon still recomputes on its regular schedule.
func (w *ClockWatcher) Run(ctx context.Context) error {
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		log.Warn().Err(err).Msg("Clock-change detection disabled, timerfd unavailable")
		return nil
	}
	// The non-blocking fd goes through the runtime poller, so Close
	// from the goroutine below unblocks a pending Read.
	f := os.NewFile(uintptr(fd), "timerfd")
	defer f.Close()

	conn, err := f.SyscallConn()
	if err != nil {
		log.Warn().Err(err).Msg("Clock-change detection disabled, no raw descriptor access")
		return nil
	}
	if err := armClockTimer(conn); err != nil {
		log.Warn().Err(err).Msg("Clock-change detection disabled, cannot arm timer")
		return nil
	}

	go func() {
		<-ctx.Done()
		f.Close()
	}()
	log.Debug().Msg("Watching for realtime clock changes")

	buf := make([]byte, 8)
	for {
		_, err := f.Read(buf)
		switch {
		case err == nil:
			// Expired, so the clock leapt past the horizon.
		case errors.Is(err, unix.ECANCELED):
			// Cancelled, so CLOCK_REALTIME was set.
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, os.ErrClosed):
			return nil
		default:
			log.Warn().Err(err).Msg("Clock-change detection stopped, timer read failed")
			return nil
		}

		// Re-arm before classifying so a burst of clock sets cannot
		// slip past while this one is handled.
		if err := armClockTimer(conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("Clock-change detection stopped, cannot re-arm timer")
			return nil
		}
		if w.tracker.Suppressed(time.Now()) {
			log.Debug().Msg("Clock change within sleep window, ignoring")
			continue
		}
		log.Info().Msg("System clock changed")
		w.events.TrySend(event.Event{Kind: event.KindTimeChanged, Source: "timerfd"})
	}
}

// armClockTimer (re)arms the cancellation timer through conn, which
// pins the descriptor open for the duration of the call. A shutdown
// Close on another goroutine cannot recycle it mid-settime.
func armClockTimer(conn syscall.RawConn) error {
	deadline := time.Now().Add(clockTimerHorizon)
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(deadline.UnixNano())}
	var armErr error
	if err := conn.Control(func(fd uintptr) {
		armErr = unix.TimerfdSettime(int(fd), unix.TFD_TIMER_ABSTIME|unix.TFD_TIMER_CANCEL_ON_SET, &spec, nil)
	}); err != nil {
		return err
	}
	return armErr
}
