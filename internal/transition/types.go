// Package transition computes the target display state for a point in
// time from an effective schedule: stable day/night periods joined by
// interpolated sunset and sunrise windows, or a fixed static target.
package transition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Hard bounds enforced by Validate. Values outside these are rejected
// regardless of what the backend might accept.
const (
	MinTemperature = 1000
	MaxTemperature = 20000

	MinGamma = 10.0
	MaxGamma = 100.0

	MinDuration = 5 * time.Minute
	MaxDuration = 120 * time.Minute

	MinUpdateInterval = 10 * time.Second
	MaxUpdateInterval = 300 * time.Second

	// MinStableSpan is the shortest allowed gap between sunrise and
	// sunset (and vice versa). Shorter spans leave no room for a
	// stable period between the two transition windows.
	MinStableSpan = 60 * time.Minute
)

// Unbounded is returned by NextChange when no time-driven change will
// ever occur (static mode). Callers must not arm a timer with it.
const Unbounded = time.Duration(math.MaxInt64)

const day = 24 * time.Hour

// Mode selects how the transition window is anchored to the configured
// sunset/sunrise instants.
type Mode string

const (
	ModeStatic   Mode = "static"
	ModeCenter   Mode = "center"
	ModeStartAt  Mode = "start_at"
	ModeFinishBy Mode = "finish_by"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeStatic, ModeCenter, ModeStartAt, ModeFinishBy:
		return true
	}
	return false
}

// PeriodKind identifies which part of the daily cycle a point in time
// falls into.
type PeriodKind int

const (
	PeriodStatic PeriodKind = iota
	PeriodDay
	PeriodNight
	PeriodSunset
	PeriodSunrise
)

// String returns a human-readable name for the period kind.
func (k PeriodKind) String() string {
	switch k {
	case PeriodStatic:
		return "static"
	case PeriodDay:
		return "day"
	case PeriodNight:
		return "night"
	case PeriodSunset:
		return "sunset"
	case PeriodSunrise:
		return "sunrise"
	default:
		return "unknown"
	}
}

// Period is the classification of a single instant. Progress is only
// meaningful for PeriodSunset and PeriodSunrise and grows from 0 to 1
// over the window.
type Period struct {
	Kind     PeriodKind
	Progress float64
}

// Stable reports whether the period holds a fixed target.
func (p Period) Stable() bool {
	return p.Kind != PeriodSunset && p.Kind != PeriodSunrise
}

// String returns a short description suitable for logs.
func (p Period) String() string {
	if p.Stable() {
		return p.Kind.String()
	}
	return fmt.Sprintf("%s (%d%%)", p.Kind, int(math.Round(p.Progress*100)))
}

// Target is a desired display state: color temperature in Kelvin and
// gamma in percent.
type Target struct {
	Temperature int
	Gamma       float64
}

// String returns a short description suitable for logs.
func (t Target) String() string {
	return fmt.Sprintf("%dK/%s%%", t.Temperature, strconv.FormatFloat(t.Gamma, 'f', -1, 64))
}

// ClockTime is a time of day as an offset from local midnight.
type ClockTime time.Duration

// ClockTimeOf extracts the time-of-day component of t.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second)
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
	}
	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		hms[i] = v
	}
	if hms[0] < 0 || hms[0] > 23 || hms[1] < 0 || hms[1] > 59 || hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return ClockTime(time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second), nil
}

// String formats the time of day as HH:MM, with seconds appended only
// when present.
func (c ClockTime) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Schedule is the effective daily schedule the state machine runs on.
// It is a plain value: geo-derived sun times are substituted into
// Sunrise/Sunset by the caller before use, so every operation here
// stays a pure function of (Schedule, instant).
type Schedule struct {
	Mode           Mode
	Sunrise        ClockTime
	Sunset         ClockTime
	Duration       time.Duration
	UpdateInterval time.Duration

	Day   Target
	Night Target

	// Static targets are required iff Mode == ModeStatic.
	StaticTemperature *int
	StaticGamma       *float64
}

// wrapDay normalizes d into [0, 24h).
func wrapDay(d time.Duration) time.Duration {
	d %= day
	if d < 0 {
		d += day
	}
	return d
}

// DaySpan is the stretch from sunrise to sunset, wrapping midnight
// when needed. DaySpan and NightSpan always sum to 24h.
func (s Schedule) DaySpan() time.Duration {
	return wrapDay(time.Duration(s.Sunset - s.Sunrise))
}

// NightSpan is the stretch from sunset to sunrise.
func (s Schedule) NightSpan() time.Duration {
	return wrapDay(time.Duration(s.Sunrise - s.Sunset))
}
