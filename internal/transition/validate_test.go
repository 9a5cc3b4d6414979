package transition

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validStatic() Schedule {
	return Schedule{
		Mode:              ModeStatic,
		StaticTemperature: intPtr(4000),
		StaticGamma:       floatPtr(95.0),
	}
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		s    Schedule
	}{
		{"center", baseSchedule(ModeCenter)},
		{"start_at", baseSchedule(ModeStartAt)},
		{"finish_by", baseSchedule(ModeFinishBy)},
		{"static", validStatic()},
		{"static_ignores_time_fields", func() Schedule {
			s := validStatic()
			s.Sunrise = clock(12, 0)
			s.Sunset = clock(12, 0) // would be rejected in any time-based mode
			return s
		}()},
		{"night_wrapping_midnight", func() Schedule {
			s := baseSchedule(ModeCenter)
			s.Sunset = clock(22, 30)
			s.Sunrise = clock(4, 30)
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Validate(tt.s); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schedule)
		setting string
	}{
		{
			name:    "unknown_mode",
			mutate:  func(s *Schedule) { s.Mode = "dusk" },
			setting: "transition.mode",
		},
		{
			name:    "identical_sunrise_sunset",
			mutate:  func(s *Schedule) { s.Sunrise = clock(6, 0); s.Sunset = clock(6, 0) },
			setting: "transition.sunrise",
		},
		{
			name:    "day_span_59_minutes",
			mutate:  func(s *Schedule) { s.Sunrise = clock(6, 0); s.Sunset = clock(6, 59) },
			setting: "transition",
		},
		{
			name:    "night_span_59_minutes",
			mutate:  func(s *Schedule) { s.Sunset = clock(23, 0); s.Sunrise = clock(23, 59) },
			setting: "transition",
		},
		{
			name:    "duration_below_minimum",
			mutate:  func(s *Schedule) { s.Duration = 4 * time.Minute },
			setting: "transition.duration",
		},
		{
			name:    "duration_above_maximum",
			mutate:  func(s *Schedule) { s.Duration = 121 * time.Minute },
			setting: "transition.duration",
		},
		{
			name:    "interval_below_minimum",
			mutate:  func(s *Schedule) { s.UpdateInterval = 9 * time.Second },
			setting: "transition.update_interval",
		},
		{
			name:    "interval_above_maximum",
			mutate:  func(s *Schedule) { s.UpdateInterval = 301 * time.Second },
			setting: "transition.update_interval",
		},
		{
			name:    "day_temperature_too_low",
			mutate:  func(s *Schedule) { s.Day.Temperature = 999 },
			setting: "day.temperature",
		},
		{
			name:    "night_temperature_too_high",
			mutate:  func(s *Schedule) { s.Night.Temperature = 20001 },
			setting: "night.temperature",
		},
		{
			name:    "night_gamma_too_low",
			mutate:  func(s *Schedule) { s.Night.Gamma = 9.9 },
			setting: "night.gamma",
		},
		{
			name:    "day_gamma_too_high",
			mutate:  func(s *Schedule) { s.Day.Gamma = 100.1 },
			setting: "day.gamma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSchedule(ModeCenter)
			tt.mutate(&s)
			_, err := Validate(s)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type %T, want *ValidationError", err)
			}
			if verr.Setting != tt.setting {
				t.Errorf("Validate() setting = %q, want %q", verr.Setting, tt.setting)
			}
		})
	}
}

func TestValidateRejectsStatic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schedule)
		setting string
	}{
		{
			name:    "missing_temperature",
			mutate:  func(s *Schedule) { s.StaticTemperature = nil },
			setting: "static.temperature",
		},
		{
			name:    "missing_gamma",
			mutate:  func(s *Schedule) { s.StaticGamma = nil },
			setting: "static.gamma",
		},
		{
			name:    "temperature_999",
			mutate:  func(s *Schedule) { s.StaticTemperature = intPtr(999) },
			setting: "static.temperature",
		},
		{
			name:    "temperature_20001",
			mutate:  func(s *Schedule) { s.StaticTemperature = intPtr(20001) },
			setting: "static.temperature",
		},
		{
			name:    "gamma_9.9",
			mutate:  func(s *Schedule) { s.StaticGamma = floatPtr(9.9) },
			setting: "static.gamma",
		},
		{
			name:    "gamma_100.1",
			mutate:  func(s *Schedule) { s.StaticGamma = floatPtr(100.1) },
			setting: "static.gamma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStatic()
			tt.mutate(&s)
			_, err := Validate(s)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type %T, want *ValidationError", err)
			}
			if verr.Setting != tt.setting {
				t.Errorf("Validate() setting = %q, want %q", verr.Setting, tt.setting)
			}
		})
	}
}

func TestValidateOverlap(t *testing.T) {
	// One hour between sunrise and sunset leaves no room for two
	// centered two-hour windows.
	s := baseSchedule(ModeCenter)
	s.Sunrise = clock(6, 0)
	s.Sunset = clock(7, 0)
	s.Duration = 120 * time.Minute

	_, err := Validate(s)
	if err == nil {
		t.Fatal("Validate() = nil, want overlap error")
	}
	var oerr *OverlapError
	if !errors.As(err, &oerr) {
		t.Fatalf("Validate() error type %T, want *OverlapError", err)
	}
	if oerr.MaxSafe != 60*time.Minute {
		t.Errorf("MaxSafe = %v, want 1h", oerr.MaxSafe)
	}
	msg := err.Error()
	for _, want := range []string{"06:00-08:00", "05:00-07:00", "overlaps", "60 minutes"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestValidateOverlapStartAt(t *testing.T) {
	s := baseSchedule(ModeStartAt)
	s.Sunrise = clock(6, 0)
	s.Sunset = clock(7, 0)
	s.Duration = 90 * time.Minute

	_, err := Validate(s)
	var oerr *OverlapError
	if !errors.As(err, &oerr) {
		t.Fatalf("Validate() = %v, want *OverlapError", err)
	}
	// Suggested maximum for edge-anchored modes is half the shorter span.
	if oerr.MaxSafe != 30*time.Minute {
		t.Errorf("MaxSafe = %v, want 30m", oerr.MaxSafe)
	}
}

func TestWindowsOverlap(t *testing.T) {
	tests := []struct {
		name   string
		aStart ClockTime
		aDur   time.Duration
		bStart ClockTime
		bDur   time.Duration
		want   bool
	}{
		{"disjoint", clock(10, 0), time.Hour, clock(12, 0), time.Hour, false},
		{"touching_is_not_overlap", clock(10, 0), time.Hour, clock(11, 0), time.Hour, false},
		{"contained", clock(10, 0), 4 * time.Hour, clock(11, 0), time.Hour, true},
		{"wrapping_vs_early_morning", clock(23, 50), 20 * time.Minute, clock(0, 5), 15 * time.Minute, true},
		{"wrapping_touching", clock(23, 50), 20 * time.Minute, clock(0, 10), 15 * time.Minute, false},
		{"both_wrapping", clock(23, 0), 2 * time.Hour, clock(23, 30), 3 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := windowsOverlap(tt.aStart, tt.aDur, tt.bStart, tt.bDur)
			if got != tt.want {
				t.Errorf("windowsOverlap() = %v, want %v", got, tt.want)
			}
			// Overlap detection must be symmetric.
			if rev := windowsOverlap(tt.bStart, tt.bDur, tt.aStart, tt.aDur); rev != got {
				t.Errorf("windowsOverlap() not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestValidateWarnsOnLongEdgeAnchoredTransition(t *testing.T) {
	s := baseSchedule(ModeStartAt)
	s.Sunrise = clock(6, 0)
	s.Sunset = clock(8, 0) // two hour day span
	s.Duration = 90 * time.Minute

	warnings, err := Validate(s)
	if err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "half the shorter span") {
		t.Errorf("warnings = %v, want one long-transition warning", warnings)
	}

	// Center mode with the same shape stays quiet.
	s.Mode = ModeCenter
	warnings, err = Validate(s)
	if err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}
