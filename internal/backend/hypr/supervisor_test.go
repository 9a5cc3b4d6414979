package hypr

import (
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestStopTerminatesChild(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	s := &Supervisor{cmd: cmd, grace: 2 * time.Second}

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > s.grace {
		t.Errorf("Stop() took %v, want a prompt SIGTERM exit", elapsed)
	}

	// The child must be reaped: signaling it again fails.
	if err := cmd.Process.Signal(syscall.Signal(0)); err == nil {
		t.Error("child still signalable after Stop()")
	}
}

func TestStopIdempotent(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	s := &Supervisor{cmd: cmd, grace: 2 * time.Second}

	s.Stop()
	s.Stop() // second call is a no-op, not a panic
}

func TestStopAfterChildExited(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start true: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	// The child is gone and already reaped; Stop just logs a warning.
	s := &Supervisor{cmd: cmd, grace: time.Second}
	s.Stop()
}
