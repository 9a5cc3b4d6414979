package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/transition"
)

// Latitudes beyond this are clamped on load: closer to the poles the
// sun math degenerates into polar day/night and the schedule would
// have no usable sunrise/sunset.
const MaxUsableLatitude = 65.0

// Domains enforced by Load. A latitude inside its domain but past
// MaxUsableLatitude is clamped, not rejected.
const (
	MaxLatitude  = 90.0
	MaxLongitude = 180.0

	MinSmoothingSeconds = 0.1
	MaxSmoothingSeconds = 60.0
)

// Config represents the daemon configuration
type Config struct {
	Backend    BackendConfig    `toml:"backend"`
	Transition TransitionConfig `toml:"transition"`
	Day        TargetConfig     `toml:"day"`
	Night      TargetConfig     `toml:"night"`
	Static     StaticConfig     `toml:"static"`
	Geo        GeoConfig        `toml:"geo"`
	Smoothing  SmoothingConfig  `toml:"smoothing"`
	Hooks      HooksConfig      `toml:"hooks"`
	Log        LogConfig        `toml:"log"`

	// Source and Preset record which document Load actually decoded.
	Source string `toml:"-"`
	Preset string `toml:"-"`
}

// BackendConfig selects and tunes the display-control backend
type BackendConfig struct {
	Kind          string   `toml:"kind"`           // auto | hyprland | none
	Start         *bool    `toml:"start"`          // supervise a backend child process (default: true)
	SocketTimeout Duration `toml:"socket_timeout"` // per-command read/write deadline (default: 2s)
}

// Autostart reports whether the daemon should own the backend process.
func (c *BackendConfig) Autostart() bool {
	if c.Start == nil {
		return true
	}
	return *c.Start
}

// TransitionConfig shapes the daily schedule
type TransitionConfig struct {
	Mode           string     `toml:"mode"` // static | center | start_at | finish_by
	Sunset         *TimeOfDay `toml:"sunset"`
	Sunrise        *TimeOfDay `toml:"sunrise"`
	Duration       int        `toml:"duration"`        // minutes
	UpdateInterval int        `toml:"update_interval"` // seconds
}

// TargetConfig is one display state endpoint
type TargetConfig struct {
	Temperature int     `toml:"temperature"` // Kelvin
	Gamma       float64 `toml:"gamma"`       // percent
}

// StaticConfig is the fixed state for static mode; both fields are
// required when that mode is selected, hence pointers
type StaticConfig struct {
	Temperature *int     `toml:"temperature"`
	Gamma       *float64 `toml:"gamma"`
}

// GeoConfig enables solar sunrise/sunset computation
type GeoConfig struct {
	Latitude  *float64 `toml:"latitude"`
	Longitude *float64 `toml:"longitude"`
	City      string   `toml:"city"`
}

// Coordinates returns the configured position, if complete.
func (c *GeoConfig) Coordinates() (lat, lon float64, ok bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return 0, 0, false
	}
	return *c.Latitude, *c.Longitude, true
}

// SmoothingConfig tunes the eased startup/shutdown applies
type SmoothingConfig struct {
	Enabled  *bool   `toml:"enabled"`
	Startup  float64 `toml:"startup"`  // seconds
	Shutdown float64 `toml:"shutdown"` // seconds
}

// IsEnabled returns the enabled flag with its default
func (c *SmoothingConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// HooksConfig points at the optional Lua hook script
type HooksConfig struct {
	Script string `toml:"script"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	JSON   bool   `toml:"json"`
	Colors *bool  `toml:"colors"`
}

// UseColors returns the colors flag with its default
func (c *LogConfig) UseColors() bool {
	if c.Colors == nil {
		return true
	}
	return *c.Colors
}

// Duration is a wrapper around time.Duration for TOML unmarshalling
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// TimeOfDay is a wrapper around transition.ClockTime for TOML
// unmarshalling of "HH:MM:SS" strings
type TimeOfDay transition.ClockTime

// UnmarshalText implements encoding.TextUnmarshaler for TimeOfDay
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := transition.ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*t = TimeOfDay(parsed)
	return nil
}

// Load reads the active configuration document for the path set: the
// selected preset's document when the active_preset marker names a
// valid one, the primary document otherwise. The geo.toml override,
// when present and well-formed, replaces the coordinates afterwards.
// Coordinates and smoothing durations are bounds-checked here;
// schedule rules stay with the transition validator.
func Load(paths Paths) (*Config, error) {
	source := paths.ConfigFile()
	preset := ActivePreset(paths)
	if preset != "" {
		source = paths.PresetConfigFile(preset)
	}

	cfg, err := loadFile(source)
	if err != nil {
		return nil, err
	}
	cfg.Source = source
	cfg.Preset = preset

	applyDefaults(cfg)
	mergeGeoOverride(cfg, paths.GeoFile())
	if err := validateBounds(cfg); err != nil {
		return nil, err
	}
	clampLatitude(cfg)

	return cfg, nil
}

// ActivePreset reads the preset marker. A missing, empty or invalid
// marker selects the primary document; a marker naming a preset with
// no config document is reported and ignored.
func ActivePreset(paths Paths) string {
	data, err := os.ReadFile(paths.ActivePresetFile())
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return ""
	}
	if !validPresetName(name) {
		log.Warn().Str("preset", name).Msg("Ignoring invalid preset name in active_preset")
		return ""
	}
	if _, err := os.Stat(paths.PresetConfigFile(name)); err != nil {
		log.Warn().Str("preset", name).Msg("Active preset has no config, falling back to primary")
		return ""
	}
	return name
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parsing %s at line %d column %d: %s", path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "auto"
	}
	if cfg.Backend.SocketTimeout == 0 {
		cfg.Backend.SocketTimeout = Duration(2 * time.Second)
	}

	if cfg.Transition.Mode == "" {
		cfg.Transition.Mode = string(transition.ModeFinishBy)
	}
	if cfg.Transition.Sunset == nil {
		cfg.Transition.Sunset = defaultTime(19, 0)
	}
	if cfg.Transition.Sunrise == nil {
		cfg.Transition.Sunrise = defaultTime(6, 0)
	}
	if cfg.Transition.Duration == 0 {
		cfg.Transition.Duration = 45
	}
	if cfg.Transition.UpdateInterval == 0 {
		cfg.Transition.UpdateInterval = 60
	}

	if cfg.Day.Temperature == 0 {
		cfg.Day.Temperature = 6500
	}
	if cfg.Day.Gamma == 0 {
		cfg.Day.Gamma = 100.0
	}
	if cfg.Night.Temperature == 0 {
		cfg.Night.Temperature = 3300
	}
	if cfg.Night.Gamma == 0 {
		cfg.Night.Gamma = 90.0
	}

	if cfg.Smoothing.Startup == 0 {
		cfg.Smoothing.Startup = 1.0
	}
	if cfg.Smoothing.Shutdown == 0 {
		cfg.Smoothing.Shutdown = 0.5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func defaultTime(h, m int) *TimeOfDay {
	t := TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return &t
}

// geoOverride is the full schema of geo.toml.
type geoOverride struct {
	Latitude  *float64 `toml:"latitude"`
	Longitude *float64 `toml:"longitude"`
}

// mergeGeoOverride layers geo.toml coordinates over the document's.
// A malformed or incomplete override is warned about and ignored, it
// never breaks a load.
func mergeGeoOverride(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var ov geoOverride
	if err := toml.Unmarshal(data, &ov); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring malformed geo override")
		return
	}
	if ov.Latitude == nil || ov.Longitude == nil {
		log.Warn().Str("path", path).Msg("Geo override needs both latitude and longitude, ignoring")
		return
	}
	cfg.Geo.Latitude = ov.Latitude
	cfg.Geo.Longitude = ov.Longitude
}

// WriteGeoFile stores a coordinate override, replacing any existing
// one. name, when non-empty, is recorded as a comment so the file says
// which place the numbers came from.
func WriteGeoFile(paths Paths, name string, lat, lon float64) error {
	if err := os.MkdirAll(paths.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	if name != "" {
		fmt.Fprintf(&buf, "# %s\n", name)
	}
	data, err := toml.Marshal(geoOverride{Latitude: &lat, Longitude: &lon})
	if err != nil {
		return fmt.Errorf("encoding geo override: %w", err)
	}
	buf.Write(data)

	if err := os.WriteFile(paths.GeoFile(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing geo override: %w", err)
	}
	return nil
}

func invalid(setting string, value any, format string, args ...any) *transition.ValidationError {
	return &transition.ValidationError{
		Setting: setting,
		Value:   fmt.Sprint(value),
		Reason:  fmt.Sprintf(format, args...),
	}
}

// validateBounds rejects out-of-domain coordinates and smoothing
// durations, whichever document they came from. Runs after the geo
// override merge so garbage in geo.toml cannot slip past.
func validateBounds(cfg *Config) error {
	if cfg.Geo.Latitude != nil {
		if lat := *cfg.Geo.Latitude; lat < -MaxLatitude || lat > MaxLatitude {
			return invalid("geo.latitude", lat,
				"must be between %g and %g degrees", -MaxLatitude, MaxLatitude)
		}
	}
	if cfg.Geo.Longitude != nil {
		if lon := *cfg.Geo.Longitude; lon < -MaxLongitude || lon > MaxLongitude {
			return invalid("geo.longitude", lon,
				"must be between %g and %g degrees", -MaxLongitude, MaxLongitude)
		}
	}
	if s := cfg.Smoothing.Startup; s < MinSmoothingSeconds || s > MaxSmoothingSeconds {
		return invalid("smoothing.startup", s,
			"must be between %g and %g seconds", MinSmoothingSeconds, MaxSmoothingSeconds)
	}
	if s := cfg.Smoothing.Shutdown; s < MinSmoothingSeconds || s > MaxSmoothingSeconds {
		return invalid("smoothing.shutdown", s,
			"must be between %g and %g seconds", MinSmoothingSeconds, MaxSmoothingSeconds)
	}
	return nil
}

func clampLatitude(cfg *Config) {
	if cfg.Geo.Latitude == nil {
		return
	}
	lat := *cfg.Geo.Latitude
	if lat > MaxUsableLatitude {
		lat = MaxUsableLatitude
	} else if lat < -MaxUsableLatitude {
		lat = -MaxUsableLatitude
	}
	if lat != *cfg.Geo.Latitude {
		log.Warn().
			Float64("configured", *cfg.Geo.Latitude).
			Float64("clamped", lat).
			Msg("Latitude clamped to the usable range")
		cfg.Geo.Latitude = &lat
	}
}

// Schedule converts the configuration into the value the time-state
// machine runs on. Geo-derived sun times are substituted by the caller
// after this, when coordinates are configured.
func (c *Config) Schedule() transition.Schedule {
	s := transition.Schedule{
		Mode:           transition.Mode(c.Transition.Mode),
		Duration:       time.Duration(c.Transition.Duration) * time.Minute,
		UpdateInterval: time.Duration(c.Transition.UpdateInterval) * time.Second,
		Day: transition.Target{
			Temperature: c.Day.Temperature,
			Gamma:       c.Day.Gamma,
		},
		Night: transition.Target{
			Temperature: c.Night.Temperature,
			Gamma:       c.Night.Gamma,
		},
		StaticTemperature: c.Static.Temperature,
		StaticGamma:       c.Static.Gamma,
	}
	if c.Transition.Sunset != nil {
		s.Sunset = transition.ClockTime(*c.Transition.Sunset)
	}
	if c.Transition.Sunrise != nil {
		s.Sunrise = transition.ClockTime(*c.Transition.Sunrise)
	}
	return s
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
