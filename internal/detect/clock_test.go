package detect

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dokzlo13/duskd/internal/event"
)

func TestClockWatcherStopsOnCancel(t *testing.T) {
	var tr SleepTracker
	d := event.NewDispatcherWithSize(1)
	defer d.Close()
	w := NewClockWatcher(&tr, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let Run reach the blocking read before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestArmClockTimerAfterClose(t *testing.T) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		t.Skipf("timerfd unavailable: %v", err)
	}
	f := os.NewFile(uintptr(fd), "timerfd")

	conn, err := f.SyscallConn()
	if err != nil {
		t.Fatalf("SyscallConn() = %v", err)
	}
	if err := armClockTimer(conn); err != nil {
		t.Fatalf("armClockTimer() = %v before close", err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := armClockTimer(conn); err == nil {
		t.Fatal("armClockTimer() = nil on a closed descriptor, want an error")
	}
}
