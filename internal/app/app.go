package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/event"
)

// App is the main application container. It wires the detection
// watchers to the daemon loop and owns their shared lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
}

// New creates an App with all services initialized but not started.
func New(cfg *config.Config, paths config.Paths) (*App, error) {
	services, err := NewServices(cfg, paths)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Events exposes the dispatcher so signal handling can feed the loop.
func (a *App) Events() *event.Dispatcher {
	return a.services.Events
}

// Run starts the watchers and drives the daemon loop until the context
// is cancelled or a shutdown event arrives. The watchers share the
// loop's lifetime: when the daemon returns, they are stopped and
// waited for before resources are released.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.services.StartWatchers(runCtx)

	err := a.services.Daemon.Run(runCtx)

	cancel()
	a.services.Events.Close()
	a.services.WaitWatchers()
	a.services.Close()
	return err
}

// SignalContext routes process signals into the event loop. The first
// SIGINT or SIGTERM requests a graceful shutdown through the
// dispatcher, a second one cancels the returned context outright.
// SIGHUP and SIGUSR2 request a configuration reload.
func SignalContext(events *event.Dispatcher) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR2)

	go func() {
		stopping := false
		for {
			select {
			case <-ctx.Done():
				signal.Stop(sigChan)
				return
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGHUP, syscall.SIGUSR2:
					log.Info().Str("signal", sig.String()).Msg("Reload requested")
					events.TrySend(event.Event{Kind: event.KindReload, Source: "signal"})
				default:
					if stopping {
						log.Warn().Str("signal", sig.String()).Msg("Forcing immediate exit")
						signal.Stop(sigChan)
						cancel()
						return
					}
					stopping = true
					log.Info().Str("signal", sig.String()).Msg("Shutdown requested")
					events.TrySend(event.Event{Kind: event.KindShutdown, Source: "signal"})
				}
			}
		}
	}()

	return ctx, cancel
}
