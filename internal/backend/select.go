package backend

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/backend/hypr"
	"github.com/dokzlo13/duskd/internal/config"
)

// Select resolves the configured backend kind into a concrete
// instance. "auto" detects a running Hyprland session from the
// environment and refuses to guess when none is found.
func Select(cfg *config.Config, shuttingDown *atomic.Bool) (Backend, error) {
	kind := cfg.Backend.Kind

	if kind == "auto" {
		if hypr.InSession() {
			kind = "hyprland"
		} else {
			return nil, fmt.Errorf("backend auto-detection found no supported compositor (HYPRLAND_INSTANCE_SIGNATURE unset); set backend.kind explicitly")
		}
	}

	switch kind {
	case "hyprland":
		socket, err := hypr.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("resolving hyprsunset socket: %w", err)
		}
		client := hypr.NewClient(socket, cfg.Backend.SocketTimeout.Duration(), shuttingDown)
		log.Info().Str("socket", socket).Msg("Using hyprland backend")
		return client, nil
	case "none":
		log.Info().Msg("Using noop backend")
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q (want auto, hyprland or none)", cfg.Backend.Kind)
	}
}
