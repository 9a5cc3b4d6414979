package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/dokzlo13/duskd/internal/transition"
)

const (
	// startupPollInterval paces the availability probes after spawn.
	startupPollInterval = 200 * time.Millisecond
	// startupTimeout bounds how long a fresh hyprsunset may take to
	// open its socket before the spawn counts as failed.
	startupTimeout = 5 * time.Second
	// stopGracePeriod is how long a SIGTERM'd child gets before the
	// supervisor escalates to SIGKILL.
	stopGracePeriod = 2 * time.Second
)

// Supervisor owns a hyprsunset child process. Teardown is best-effort
// and idempotent: whichever path drops the supervisor, the child is
// signaled, given a grace period, killed if needed and always reaped.
type Supervisor struct {
	cmd      *exec.Cmd
	grace    time.Duration
	stopOnce sync.Once
}

// StartSupervised spawns hyprsunset with the initial target as startup
// arguments (so the screen never flashes the binary's own defaults)
// and waits for its socket to become responsive. The child runs in its
// own process group, out of reach of terminal signals, and carries a
// parent-death signal so a crashed daemon cannot leak it.
func StartSupervised(ctx context.Context, client *Client, initial transition.Target) (*Supervisor, error) {
	cmd := exec.Command("hyprsunset",
		"-t", strconv.Itoa(initial.Temperature),
		"-g", FormatGamma(initial.Gamma),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: unix.SIGTERM,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning hyprsunset: %w", err)
	}
	s := &Supervisor{cmd: cmd, grace: stopGracePeriod}

	log.Info().
		Int("pid", cmd.Process.Pid).
		Int("temperature", initial.Temperature).
		Float64("gamma", initial.Gamma).
		Msg("Spawned hyprsunset")

	// Poll until the control socket answers.
	deadline := time.Now().Add(startupTimeout)
	for !client.Probe(ctx) {
		if time.Now().After(deadline) {
			s.Stop()
			return nil, fmt.Errorf("hyprsunset did not become responsive within %s", startupTimeout)
		}
		select {
		case <-ctx.Done():
			s.Stop()
			return nil, ctx.Err()
		case <-time.After(startupPollInterval):
		}
	}

	return s, nil
}

// Pid returns the child's process id.
func (s *Supervisor) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Stop terminates the child: SIGTERM, a bounded grace wait, then
// SIGKILL if it is still running. The child is reaped on every path.
// Safe to call more than once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *Supervisor) stop() {
	if s.cmd.Process == nil {
		return
	}
	pid := s.cmd.Process.Pid

	if err := s.cmd.Process.Signal(unix.SIGTERM); err != nil {
		// Exited on its own before we got here. Reap and move on.
		log.Warn().Int("pid", pid).Err(err).Msg("Backend process already exited before stop")
		_ = s.cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		log.Debug().Int("pid", pid).Msg("Backend process exited after SIGTERM")
	case <-time.After(s.grace):
		log.Warn().Int("pid", pid).Dur("grace", s.grace).Msg("Backend process ignored SIGTERM, killing")
		_ = s.cmd.Process.Kill()
		<-done
	}
}
