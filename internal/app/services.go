package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/daemon"
	"github.com/dokzlo13/duskd/internal/db"
	"github.com/dokzlo13/duskd/internal/detect"
	"github.com/dokzlo13/duskd/internal/event"
	"github.com/dokzlo13/duskd/internal/geo"
)

// geocodeTimeout bounds a single Nominatim lookup.
const geocodeTimeout = 10 * time.Second

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg   *config.Config
	paths config.Paths

	// Core infrastructure
	DB       *db.DB
	Resolver *geo.Resolver

	// Detection plumbing
	Events  *event.Dispatcher
	Tracker *detect.SleepTracker
	Sleep   *detect.SleepWatcher
	Clock   *detect.ClockWatcher
	Watcher *detect.ConfigWatcher

	// The loop itself
	Daemon *daemon.Daemon

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, paths config.Paths) (*Services, error) {
	s := &Services{cfg: cfg, paths: paths}

	// SQLite backs the geocode cache, so repeated city lookups stay
	// off the network.
	database, err := db.Open(paths.DatabaseFile())
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Resolver = geo.NewResolver(geo.NewCache(database.DB), geocodeTimeout)

	s.Events = event.NewDispatcher()
	s.Tracker = &detect.SleepTracker{}
	s.Sleep = detect.NewSleepWatcher(s.Tracker, s.Events)
	s.Clock = detect.NewClockWatcher(s.Tracker, s.Events)

	s.Watcher, err = detect.NewConfigWatcher(paths, s.Events)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Daemon = daemon.New(cfg, paths, s.Events, s.Watcher, s.Resolver)

	return s, nil
}

// StartWatchers launches the detection watchers. Each one degrades on
// its own; a watcher that gives up leaves the loop running on timers
// alone.
func (s *Services) StartWatchers(ctx context.Context) {
	watchers := []struct {
		name string
		run  func(context.Context) error
	}{
		{"sleep", s.Sleep.Run},
		{"clock", s.Clock.Run},
		{"config", s.Watcher.Run},
	}

	for _, w := range watchers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := w.run(ctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, detect.ErrSleepWatchUnavailable) {
				return
			}
			log.Warn().Err(err).Str("watcher", w.name).Msg("Watcher stopped")
		}()
	}
}

// WaitWatchers blocks until every watcher goroutine has returned.
func (s *Services) WaitWatchers() {
	s.wg.Wait()
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
