// Package daemon drives the reconciliation loop: it computes the
// display state the schedule calls for, pushes it to the backend, and
// reacts to reloads, resumes, and clock changes between timed wakeups.
package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/duskd/internal/backend"
	"github.com/dokzlo13/duskd/internal/backend/hypr"
	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/detect"
	"github.com/dokzlo13/duskd/internal/event"
	"github.com/dokzlo13/duskd/internal/geo"
	"github.com/dokzlo13/duskd/internal/hooks"
	"github.com/dokzlo13/duskd/internal/transition"
)

const (
	applyAttempts = 3
	applyBackoff  = 250 * time.Millisecond
	applyRateRPS  = 2
	applyBurst    = 2

	shutdownTimeout = 5 * time.Second
)

// Daemon owns the reconcile loop and the backend lifecycle.
type Daemon struct {
	paths    config.Paths
	events   *event.Dispatcher
	watcher  *detect.ConfigWatcher
	resolver *geo.Resolver
	hooks    *hooks.Runner

	shuttingDown *atomic.Bool
	limiter      *rate.Limiter

	cfg     *config.Config
	backend backend.Backend
	super   *hypr.Supervisor

	current    transition.Period
	applied    transition.Target
	hasApplied bool
}

// New assembles a daemon around an already loaded configuration.
// watcher and resolver may be nil; the matching features are skipped.
func New(cfg *config.Config, paths config.Paths, events *event.Dispatcher, watcher *detect.ConfigWatcher, resolver *geo.Resolver) *Daemon {
	return &Daemon{
		paths:        paths,
		events:       events,
		watcher:      watcher,
		resolver:     resolver,
		hooks:        hooks.NewRunner(),
		shuttingDown: &atomic.Bool{},
		limiter:      rate.NewLimiter(rate.Limit(applyRateRPS), applyBurst),
		cfg:          cfg,
	}
}

// Run blocks until ctx is cancelled or a Shutdown event arrives.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.adopt(ctx, d.cfg); err != nil {
		return fmt.Errorf("configuration rejected: %w", err)
	}

	b, err := backend.Select(d.cfg, d.shuttingDown)
	if err != nil {
		return err
	}
	d.backend = b
	log.Info().Str("backend", b.Name()).Msg("Backend selected")

	if err := d.startup(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(time.Second)
	defer timer.Stop()
	force := false

	for {
		sched := d.reconcile(ctx, force)
		force = false

		wait := sched.NextChange(time.Now())
		var fire <-chan time.Time
		if wait == transition.Unbounded {
			timer.Stop()
			log.Debug().Msg("Static period, waiting for events")
		} else {
			timer.Reset(wait)
			fire = timer.C
			log.Debug().Dur("wait", wait).Msg("Sleeping until next change")
		}

		select {
		case <-ctx.Done():
			return d.shutdown()
		case ev := <-d.events.Events():
			switch ev.Kind {
			case event.KindShutdown:
				log.Info().Str("source", ev.Source).Msg("Shutdown requested")
				return d.shutdown()
			case event.KindReload:
				log.Info().Str("source", ev.Source).Msg("Reload requested")
				d.reloadConfig(ctx)
				force = true
			case event.KindSleepResuming:
				log.Info().Msg("Resumed from sleep, recomputing")
				force = true
			case event.KindTimeChanged:
				log.Info().Msg("System time changed, recomputing")
				force = true
			}
		case <-fire:
		}
	}
}

// startup brings the display to the current target, easing in when
// smoothing is enabled, and launches the supervised backend process
// when configured.
func (d *Daemon) startup(ctx context.Context) error {
	now := time.Now()
	sched := activeSchedule(d.cfg, now)
	period := sched.PeriodAt(now)
	target := sched.Target(period)
	day := sched.Day

	startupDur := time.Duration(d.cfg.Smoothing.Startup * float64(time.Second))
	ease := d.cfg.Smoothing.IsEnabled() && startupDur > 0 && target != day

	if client, ok := d.backend.(*hypr.Client); ok && d.cfg.Backend.Autostart() {
		// When easing in, the child starts on day values and the
		// smoothing below walks it to the target.
		initial := target
		if ease {
			initial = day
		}
		super, err := hypr.StartSupervised(ctx, client, initial)
		if err != nil {
			return fmt.Errorf("starting hyprsunset: %w", err)
		}
		d.super = super
	} else if !d.backend.Probe(ctx) {
		log.Warn().Str("backend", d.backend.Name()).Msg("Backend not reachable yet, applies will retry")
	}

	var err error
	if ease {
		err = d.smooth(ctx, day, target, startupDur)
	} else {
		err = d.applyWithRetry(ctx, target)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Initial apply failed, loop will retry")
	} else {
		d.applied = target
		d.hasApplied = true
	}

	d.current = period
	log.Info().Stringer("period", period).Stringer("target", target).Msg("Initial state")
	return nil
}

// reconcile recomputes the target for the current time and pushes it
// out. force bypasses the change-only suppression after events that
// may have moved the clock or the configuration.
func (d *Daemon) reconcile(ctx context.Context, force bool) transition.Schedule {
	now := time.Now()
	sched := activeSchedule(d.cfg, now)
	period := sched.PeriodAt(now)
	target := sched.Target(period)

	if period.Kind != d.current.Kind {
		log.Info().Stringer("from", d.current).Stringer("to", period).Msg("Period changed")
		d.hooks.OnPeriodChange(hooks.Change{Period: period, Previous: d.current, Target: target})
	}
	d.current = period

	if force || !d.hasApplied || target != d.applied {
		if err := d.applyWithRetry(ctx, target); err == nil {
			d.applied = target
			d.hasApplied = true
		}
	} else {
		log.Debug().Stringer("target", target).Msg("Target unchanged")
	}
	return sched
}

func (d *Daemon) applyOnce(ctx context.Context, target transition.Target) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.backend.Apply(ctx, target)
}

// applyWithRetry pushes one target with bounded retries. Exhausting
// the attempts is not fatal; the next wakeup tries again.
func (d *Daemon) applyWithRetry(ctx context.Context, target transition.Target) error {
	backoff := applyBackoff
	var err error
	for attempt := 1; attempt <= applyAttempts; attempt++ {
		if err = d.applyOnce(ctx, target); err == nil {
			log.Debug().Stringer("target", target).Msg("Target applied")
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < applyAttempts {
			log.Debug().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Apply failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return err
			}
			backoff *= 2
		}
	}
	log.Warn().Err(err).Stringer("target", target).Msg("Apply failed, giving up until next tick")
	return err
}

// reloadConfig swaps in the configuration from disk, keeping the last
// known good one when the new one fails to load or validate.
func (d *Daemon) reloadConfig(ctx context.Context) {
	cfg, err := config.Load(d.paths)
	if err == nil {
		err = d.adopt(ctx, cfg)
	}
	if err != nil {
		log.Error().Err(err).Msg("Reload failed, keeping last known good configuration")
	}
}

// adopt validates cfg for the current date and, on success, makes it
// the active configuration: hooks are reloaded and the watcher follows
// the new preset directory.
func (d *Daemon) adopt(ctx context.Context, cfg *config.Config) error {
	d.resolveCity(ctx, cfg)

	warnings, err := transition.Validate(activeSchedule(cfg, time.Now()))
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	d.cfg = cfg
	d.hooks.Load(d.scriptPath(cfg))
	if d.watcher != nil {
		presetDir := ""
		if cfg.Preset != "" {
			presetDir = d.paths.PresetDir(cfg.Preset)
		}
		d.watcher.WatchPreset(presetDir)
	}

	log.Info().
		Str("source", cfg.Source).
		Str("preset", cfg.Preset).
		Str("mode", cfg.Transition.Mode).
		Msg("Configuration active")
	return nil
}

func (d *Daemon) scriptPath(cfg *config.Config) string {
	if cfg.Hooks.Script == "" {
		return ""
	}
	return d.paths.ScriptFile(cfg.Hooks.Script)
}

// resolveCity fills coordinates from the configured city name when no
// explicit coordinates are present. Failure leaves the configured
// sunset/sunrise times in charge.
func (d *Daemon) resolveCity(ctx context.Context, cfg *config.Config) {
	if cfg.Geo.City == "" || cfg.Geo.Latitude != nil || cfg.Geo.Longitude != nil || d.resolver == nil {
		return
	}
	loc, err := d.resolver.Resolve(ctx, cfg.Geo.City)
	if err != nil {
		log.Warn().Err(err).Str("city", cfg.Geo.City).Msg("City resolution failed, using configured times")
		return
	}

	lat, lon := loc.Latitude, loc.Longitude
	clamped := lat
	if clamped > config.MaxUsableLatitude {
		clamped = config.MaxUsableLatitude
	} else if clamped < -config.MaxUsableLatitude {
		clamped = -config.MaxUsableLatitude
	}
	if clamped != lat {
		log.Warn().
			Float64("resolved", lat).
			Float64("clamped", clamped).
			Msg("Latitude clamped to the usable range")
		lat = clamped
	}

	cfg.Geo.Latitude = &lat
	cfg.Geo.Longitude = &lon
	log.Info().
		Str("city", loc.Name).
		Float64("latitude", lat).
		Float64("longitude", lon).
		Msg("City resolved")
}

// activeSchedule converts cfg for the given date, substituting solar
// sunset/sunrise when coordinates are known. Sun times move day to
// day, so this runs on every recompute.
func activeSchedule(cfg *config.Config, now time.Time) transition.Schedule {
	s := cfg.Schedule()
	if lat, lon, ok := cfg.Geo.Coordinates(); ok && s.Mode != transition.ModeStatic {
		sunrise, sunset := geo.SunTimes(lat, lon, now)
		s.Sunrise = transition.ClockTimeOf(sunrise)
		s.Sunset = transition.ClockTimeOf(sunset)
	}
	return s
}

// shutdown restores day values, flips the shared flag so late applies
// become no-ops, and stops the supervised process.
func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	day := d.cfg.Schedule().Day
	dur := time.Duration(d.cfg.Smoothing.Shutdown * float64(time.Second))

	var err error
	if d.cfg.Smoothing.IsEnabled() && dur > 0 && d.hasApplied && d.applied != day {
		log.Info().Stringer("target", day).Msg("Restoring day values")
		err = d.smooth(ctx, d.applied, day, dur)
	} else {
		err = d.applyOnce(ctx, day)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Could not restore day values")
	}

	d.shuttingDown.Store(true)
	if d.super != nil {
		d.super.Stop()
	}
	d.hooks.Close()
	log.Info().Msg("Daemon stopped")
	return nil
}
