package backend

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/transition"
)

// Noop logs applies without touching a display. Selected with
// kind = "none"; useful headless and in tests.
type Noop struct{}

// NewNoop creates a no-op backend.
func NewNoop() *Noop {
	return &Noop{}
}

// Apply records the target and succeeds.
func (*Noop) Apply(ctx context.Context, target transition.Target) error {
	log.Debug().
		Int("temperature", target.Temperature).
		Float64("gamma", target.Gamma).
		Msg("Noop backend apply")
	return nil
}

// Probe always reports responsive.
func (*Noop) Probe(ctx context.Context) bool {
	return true
}

// Name identifies the backend.
func (*Noop) Name() string {
	return "noop"
}
