package transition

import (
	"math"
	"time"
)

// window returns the start of the transition window anchored at the
// given instant for the schedule's mode. The window always runs for
// s.Duration from the returned start, wrapping midnight freely.
func (s Schedule) window(anchor ClockTime) ClockTime {
	switch s.Mode {
	case ModeStartAt:
		return ClockTime(wrapDay(time.Duration(anchor)))
	case ModeFinishBy:
		return ClockTime(wrapDay(time.Duration(anchor) - s.Duration))
	default: // ModeCenter
		return ClockTime(wrapDay(time.Duration(anchor) - s.Duration/2))
	}
}

// progressIn reports where c falls inside a window starting at start.
// The endpoints are excluded: progress 0 and 1 classify as the
// adjacent stable periods, not as the transition.
func (s Schedule) progressIn(c, start ClockTime) (float64, bool) {
	elapsed := wrapDay(time.Duration(c - start))
	if elapsed <= 0 || elapsed >= s.Duration {
		return 0, false
	}
	return float64(elapsed) / float64(s.Duration), true
}

// PeriodAt classifies an instant. Pure: the result depends only on the
// schedule and the wall-clock time of day of now.
func (s Schedule) PeriodAt(now time.Time) Period {
	if s.Mode == ModeStatic {
		return Period{Kind: PeriodStatic}
	}

	c := ClockTimeOf(now)
	sunsetStart := s.window(s.Sunset)
	sunriseStart := s.window(s.Sunrise)

	if p, in := s.progressIn(c, sunsetStart); in {
		return Period{Kind: PeriodSunset, Progress: p}
	}
	if p, in := s.progressIn(c, sunriseStart); in {
		return Period{Kind: PeriodSunrise, Progress: p}
	}

	// Stable. Day is the closed stretch from the end of the sunrise
	// window to the start of the sunset window, so an instant sitting
	// exactly on a window edge lands in the stable period next to it.
	sunriseEnd := ClockTime(wrapDay(time.Duration(sunriseStart) + s.Duration))
	daySpan := wrapDay(time.Duration(sunsetStart - sunriseEnd))
	if wrapDay(time.Duration(c-sunriseEnd)) <= daySpan {
		return Period{Kind: PeriodDay}
	}
	return Period{Kind: PeriodNight}
}

// Target resolves the display state for a period under this schedule.
// Stable periods return the configured values exactly; transitions
// interpolate linearly between them.
func (s Schedule) Target(p Period) Target {
	switch p.Kind {
	case PeriodStatic:
		t := Target{Temperature: MaxTemperature, Gamma: MaxGamma}
		if s.StaticTemperature != nil {
			t.Temperature = *s.StaticTemperature
		}
		if s.StaticGamma != nil {
			t.Gamma = *s.StaticGamma
		}
		return t
	case PeriodDay:
		return s.Day
	case PeriodNight:
		return s.Night
	case PeriodSunset:
		return lerp(s.Day, s.Night, p.Progress)
	case PeriodSunrise:
		return lerp(s.Night, s.Day, p.Progress)
	}
	return s.Day
}

// lerp interpolates between two targets. Progress outside [0,1] is
// clamped so the endpoints are hit exactly.
func lerp(from, to Target, progress float64) Target {
	if progress <= 0 {
		return from
	}
	if progress >= 1 {
		return to
	}
	return Target{
		Temperature: int(math.Round(float64(from.Temperature) + float64(to.Temperature-from.Temperature)*progress)),
		Gamma:       from.Gamma + (to.Gamma-from.Gamma)*progress,
	}
}

// NextChange returns the wait until the target next needs
// recomputing: the time to the nearest window boundary, capped at the
// update interval. Static mode returns Unbounded.
func (s Schedule) NextChange(now time.Time) time.Duration {
	if s.Mode == ModeStatic {
		return Unbounded
	}

	p := s.PeriodAt(now)

	// Sitting exactly on a window's leading edge: the classification
	// flips the moment time advances, so wake right away instead of
	// waiting for that edge to come around tomorrow.
	if s.PeriodAt(now.Add(time.Second)).Kind != p.Kind {
		return time.Second
	}

	c := ClockTimeOf(now)
	sunsetStart := time.Duration(s.window(s.Sunset))
	sunriseStart := time.Duration(s.window(s.Sunrise))
	boundaries := [4]time.Duration{
		sunsetStart,
		wrapDay(sunsetStart + s.Duration),
		sunriseStart,
		wrapDay(sunriseStart + s.Duration),
	}

	until := day
	for _, b := range boundaries {
		d := wrapDay(b - time.Duration(c))
		if d == 0 {
			// An edge we are sitting on and not about to cross is the
			// one just behind us.
			continue
		}
		if d < until {
			until = d
		}
	}

	if s.UpdateInterval > 0 && s.UpdateInterval < until {
		return s.UpdateInterval
	}
	return until
}
