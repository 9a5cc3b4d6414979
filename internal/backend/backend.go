// Package backend abstracts the display-control mechanism the daemon
// pushes targets to. The concrete kind is selected once at startup and
// never re-dispatched per call.
package backend

import (
	"context"

	"github.com/dokzlo13/duskd/internal/transition"
)

// Backend applies display state. Implementations treat a target as a
// unit: temperature and gamma land together or the call fails.
type Backend interface {
	// Apply pushes a target. Unavailability is an error for the
	// caller's retry policy, never a panic or a crash.
	Apply(ctx context.Context, target transition.Target) error
	// Probe reports whether the backend is currently responsive. It
	// performs no writes and no logging; callers decide what a false
	// means in their context.
	Probe(ctx context.Context) bool
	// Name identifies the backend in logs.
	Name() string
}
