package daemon

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/transition"
)

const (
	minSmoothStep  = 100 * time.Millisecond
	maxSmoothSteps = 40
)

// smoothSteps plans the intermediate targets for easing between two
// display states over the given duration. The last element is exactly
// to; a plan is never empty.
func smoothSteps(from, to transition.Target, duration time.Duration) []transition.Target {
	n := int(duration / minSmoothStep)
	if n > maxSmoothSteps {
		n = maxSmoothSteps
	}
	if n < 2 || from == to {
		return []transition.Target{to}
	}

	steps := make([]transition.Target, 0, n)
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n)
		steps = append(steps, transition.Target{
			Temperature: from.Temperature + int(math.Round(f*float64(to.Temperature-from.Temperature))),
			Gamma:       from.Gamma + f*(to.Gamma-from.Gamma),
		})
	}
	steps[n-1] = to
	return steps
}

// smooth eases the display between two targets. Each step goes through
// the rate-limited applier, so step bursts degrade to the limiter's
// pace instead of hammering the backend socket.
func (d *Daemon) smooth(ctx context.Context, from, to transition.Target, duration time.Duration) error {
	steps := smoothSteps(from, to, duration)
	if len(steps) == 1 {
		return d.applyOnce(ctx, steps[0])
	}

	interval := duration / time.Duration(len(steps))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().
		Stringer("from", from).
		Stringer("to", to).
		Int("steps", len(steps)).
		Dur("interval", interval).
		Msg("Smoothing")

	for i, step := range steps {
		if err := d.applyOnce(ctx, step); err != nil {
			return err
		}
		if i == len(steps)-1 {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
