package transition

import (
	"fmt"
	"time"
)

// ValidationError describes a single rejected setting. The reason is
// written for the user: it names the offending value and the bound or
// rule it breaks.
type ValidationError struct {
	Setting string
	Value   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("%s = %s: %s", e.Setting, e.Value, e.Reason)
}

func invalid(setting string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Setting: setting,
		Value:   fmt.Sprint(value),
		Reason:  fmt.Sprintf(format, args...),
	}
}

// OverlapError reports that the sunset and sunrise transition windows
// intersect, which would make the period classification ambiguous.
type OverlapError struct {
	SunsetStart  ClockTime
	SunsetEnd    ClockTime
	SunriseStart ClockTime
	SunriseEnd   ClockTime
	MaxSafe      time.Duration
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"sunset transition window %s-%s overlaps sunrise transition window %s-%s; lower duration to at most %d minutes",
		e.SunsetStart, e.SunsetEnd, e.SunriseStart, e.SunriseEnd,
		int(e.MaxSafe.Minutes()))
}

// clockRange is a linear, non-wrapping half-open range within one day.
type clockRange struct {
	start, end time.Duration
}

// splitWindow normalizes a possibly midnight-crossing window into one
// or two linear sub-ranges.
func splitWindow(start ClockTime, dur time.Duration) []clockRange {
	s := wrapDay(time.Duration(start))
	e := s + dur
	if e <= day {
		return []clockRange{{s, e}}
	}
	return []clockRange{{s, day}, {0, e - day}}
}

func rangesIntersect(a, b clockRange) bool {
	return a.start < b.end && b.start < a.end
}

// windowsOverlap reports whether two wrapped windows intersect
// anywhere on the 24h circle.
func windowsOverlap(aStart ClockTime, aDur time.Duration, bStart ClockTime, bDur time.Duration) bool {
	for _, ra := range splitWindow(aStart, aDur) {
		for _, rb := range splitWindow(bStart, bDur) {
			if rangesIntersect(ra, rb) {
				return true
			}
		}
	}
	return false
}

// maxSafeDuration suggests the longest transition that cannot overlap
// for the schedule's spans and mode, floored to whole minutes and
// clamped to the hard bounds.
func (s Schedule) maxSafeDuration() time.Duration {
	shorter := s.DaySpan()
	if n := s.NightSpan(); n < shorter {
		shorter = n
	}
	safe := shorter
	if s.Mode == ModeStartAt || s.Mode == ModeFinishBy {
		safe = shorter / 2
	}
	safe = safe.Truncate(time.Minute)
	if safe > MaxDuration {
		safe = MaxDuration
	}
	if safe < MinDuration {
		safe = MinDuration
	}
	return safe
}

func validateTarget(prefix string, t Target) error {
	if t.Temperature < MinTemperature || t.Temperature > MaxTemperature {
		return invalid(prefix+".temperature", t.Temperature,
			"must be between %d and %d Kelvin", MinTemperature, MaxTemperature)
	}
	if t.Gamma < MinGamma || t.Gamma > MaxGamma {
		return invalid(prefix+".gamma", t.Gamma,
			"must be between %g and %g percent", MinGamma, MaxGamma)
	}
	return nil
}

// Validate checks a schedule against every hard rule before the state
// machine is allowed to run on it. It returns soft warnings alongside
// a nil error when the schedule is usable but questionable. Callers
// must re-run it on every reload, not only at startup.
func Validate(s Schedule) ([]string, error) {
	if !s.Mode.Valid() {
		return nil, invalid("transition.mode", string(s.Mode),
			"must be one of static, center, start_at, finish_by")
	}

	if s.Mode == ModeStatic {
		if s.StaticTemperature == nil {
			return nil, invalid("static.temperature", "",
				"required when transition.mode is static")
		}
		if s.StaticGamma == nil {
			return nil, invalid("static.gamma", "",
				"required when transition.mode is static")
		}
		if err := validateTarget("static", Target{Temperature: *s.StaticTemperature, Gamma: *s.StaticGamma}); err != nil {
			return nil, err
		}
		// Time-of-day fields are ignored in static mode.
		return nil, nil
	}

	if err := validateTarget("day", s.Day); err != nil {
		return nil, err
	}
	if err := validateTarget("night", s.Night); err != nil {
		return nil, err
	}

	if s.Sunrise == s.Sunset {
		return nil, invalid("transition.sunrise", s.Sunrise,
			"must differ from sunset (%s)", s.Sunset)
	}
	if ds := s.DaySpan(); ds < MinStableSpan {
		return nil, invalid("transition", "",
			"day span %s-%s is %d minutes, need at least %d",
			s.Sunrise, s.Sunset, int(ds.Minutes()), int(MinStableSpan.Minutes()))
	}
	if ns := s.NightSpan(); ns < MinStableSpan {
		return nil, invalid("transition", "",
			"night span %s-%s is %d minutes, need at least %d",
			s.Sunset, s.Sunrise, int(ns.Minutes()), int(MinStableSpan.Minutes()))
	}

	if s.Duration < MinDuration || s.Duration > MaxDuration {
		return nil, invalid("transition.duration", int(s.Duration.Minutes()),
			"must be between %d and %d minutes",
			int(MinDuration.Minutes()), int(MaxDuration.Minutes()))
	}
	if s.UpdateInterval < MinUpdateInterval || s.UpdateInterval > MaxUpdateInterval {
		return nil, invalid("transition.update_interval", int(s.UpdateInterval.Seconds()),
			"must be between %d and %d seconds",
			int(MinUpdateInterval.Seconds()), int(MaxUpdateInterval.Seconds()))
	}
	if s.UpdateInterval > s.Duration {
		return nil, invalid("transition.update_interval", int(s.UpdateInterval.Seconds()),
			"exceeds the transition duration (%d seconds)", int(s.Duration.Seconds()))
	}

	if s.Mode == ModeCenter {
		half := s.Duration / 2
		if half > s.DaySpan() || half > s.NightSpan() {
			return nil, invalid("transition.duration", int(s.Duration.Minutes()),
				"half the transition (%d minutes) does not fit inside both the day and night spans",
				int(half.Minutes()))
		}
	}

	sunsetStart := s.window(s.Sunset)
	sunriseStart := s.window(s.Sunrise)
	if windowsOverlap(sunsetStart, s.Duration, sunriseStart, s.Duration) {
		return nil, &OverlapError{
			SunsetStart:  sunsetStart,
			SunsetEnd:    ClockTime(wrapDay(time.Duration(sunsetStart) + s.Duration)),
			SunriseStart: sunriseStart,
			SunriseEnd:   ClockTime(wrapDay(time.Duration(sunriseStart) + s.Duration)),
			MaxSafe:      s.maxSafeDuration(),
		}
	}

	var warnings []string
	if s.Mode == ModeStartAt || s.Mode == ModeFinishBy {
		shorter := s.DaySpan()
		if n := s.NightSpan(); n < shorter {
			shorter = n
		}
		if s.Duration > shorter/2 {
			warnings = append(warnings, fmt.Sprintf(
				"transition.duration %d minutes is more than half the shorter span (%d minutes); transitions will dominate it",
				int(s.Duration.Minutes()), int(shorter.Minutes())))
		}
	}
	return warnings, nil
}
