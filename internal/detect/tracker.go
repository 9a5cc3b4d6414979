// Package detect watches the environment around the daemon: logind
// suspend/resume transitions, discontinuous realtime clock changes, and
// configuration edits on disk. Detectors translate what they see into
// events for the reconcile loop; none of them blocks it.
package detect

import (
	"sync/atomic"
	"time"
)

// resumeGracePeriod is how long after a resume clock-change reports are
// still attributed to the wakeup itself rather than a real time change.
const resumeGracePeriod = 5 * time.Second

// SleepTracker records suspend/resume transitions using atomics only,
// so detectors on different goroutines can consult it without locking.
// The zero value is ready to use.
type SleepTracker struct {
	sleeping  atomic.Bool
	sleptAt   atomic.Int64 // unix nanoseconds of the last suspend, 0 if never
	resumedAt atomic.Int64 // unix nanoseconds of the last resume, 0 if never
}

// MarkSleeping records that the system is about to suspend.
func (t *SleepTracker) MarkSleeping(now time.Time) {
	t.sleptAt.Store(now.UnixNano())
	t.sleeping.Store(true)
}

// MarkResumed records that the system woke up.
func (t *SleepTracker) MarkResumed(now time.Time) {
	t.resumedAt.Store(now.UnixNano())
	t.sleeping.Store(false)
}

// Sleeping reports whether a suspend was announced without a matching
// resume yet.
func (t *SleepTracker) Sleeping() bool {
	return t.sleeping.Load()
}

// LastSleep returns when the system last announced a suspend, or the
// zero time if it never did.
func (t *SleepTracker) LastSleep() time.Time {
	ns := t.sleptAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastResume returns when the system last resumed, or the zero time if
// it never did.
func (t *SleepTracker) LastResume() time.Time {
	ns := t.resumedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Suppressed reports whether a clock-change observed at now should be
// ignored. Wakeups step CLOCK_REALTIME themselves, so reports during
// sleep or shortly after a resume are noise, and the resume path
// already forces a recompute.
func (t *SleepTracker) Suppressed(now time.Time) bool {
	if t.sleeping.Load() {
		return true
	}
	resumed := t.resumedAt.Load()
	if resumed == 0 {
		return false
	}
	since := now.UnixNano() - resumed
	return since >= 0 && since < int64(resumeGracePeriod)
}
