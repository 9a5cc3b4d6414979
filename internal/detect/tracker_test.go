package detect

import (
	"testing"
	"time"
)

func TestTrackerTransitions(t *testing.T) {
	var tr SleepTracker
	base := time.Unix(1_700_000_000, 0)

	if tr.Sleeping() {
		t.Error("zero tracker reports sleeping")
	}
	if !tr.LastSleep().IsZero() || !tr.LastResume().IsZero() {
		t.Error("zero tracker reports past transitions")
	}

	tr.MarkSleeping(base)
	if !tr.Sleeping() {
		t.Error("Sleeping() = false after MarkSleeping")
	}
	if got := tr.LastSleep(); !got.Equal(base) {
		t.Errorf("LastSleep() = %v, want %v", got, base)
	}

	resumed := base.Add(2 * time.Hour)
	tr.MarkResumed(resumed)
	if tr.Sleeping() {
		t.Error("Sleeping() = true after MarkResumed")
	}
	if got := tr.LastResume(); !got.Equal(resumed) {
		t.Errorf("LastResume() = %v, want %v", got, resumed)
	}
}

func TestTrackerSuppressed(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name  string
		setup func(*SleepTracker)
		at    time.Time
		want  bool
	}{
		{
			name:  "never slept",
			setup: func(*SleepTracker) {},
			at:    base,
			want:  false,
		},
		{
			name:  "while sleeping",
			setup: func(tr *SleepTracker) { tr.MarkSleeping(base) },
			at:    base.Add(time.Minute),
			want:  true,
		},
		{
			name: "inside resume grace",
			setup: func(tr *SleepTracker) {
				tr.MarkSleeping(base)
				tr.MarkResumed(base.Add(time.Hour))
			},
			at:   base.Add(time.Hour + 4*time.Second),
			want: true,
		},
		{
			name: "exactly at grace edge",
			setup: func(tr *SleepTracker) {
				tr.MarkResumed(base)
			},
			at:   base.Add(resumeGracePeriod),
			want: false,
		},
		{
			name: "after grace",
			setup: func(tr *SleepTracker) {
				tr.MarkSleeping(base)
				tr.MarkResumed(base.Add(time.Hour))
			},
			at:   base.Add(time.Hour + 6*time.Second),
			want: false,
		},
		{
			name: "clock stepped behind resume",
			setup: func(tr *SleepTracker) {
				tr.MarkResumed(base)
			},
			at:   base.Add(-time.Second),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr SleepTracker
			tt.setup(&tr)
			if got := tr.Suppressed(tt.at); got != tt.want {
				t.Errorf("Suppressed(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
