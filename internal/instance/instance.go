// Package instance enforces the single-daemon guarantee through a pid
// lock file and lets other invocations signal the running daemon.
package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by Acquire when a live daemon holds
// the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lock is a held single-instance lock.
type Lock struct {
	path string
	id   string
}

// ID returns the instance identifier recorded in the lock file.
func (l *Lock) ID() string {
	return l.id
}

// Acquire claims the lock file, replacing one left behind by a dead
// process. When the recorded owner is alive the error wraps
// ErrAlreadyRunning and names the pid.
func Acquire(path string) (*Lock, error) {
	id := uuid.New().String()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d %s\n", os.Getpid(), id)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", errors.Join(werr, cerr))
			}
			log.Debug().Str("path", path).Str("instance", id).Msg("Instance lock acquired")
			return &Lock{path: path, id: id}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		pid, _, rerr := Read(path)
		if rerr == nil && processAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		log.Warn().Str("path", path).Int("pid", pid).Msg("Removing stale lock file")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock file: %w", err)
		}
	}
	// Both attempts lost the create race, so someone else just started.
	return nil, ErrAlreadyRunning
}

// Release removes the lock file. A lock file that no longer carries
// our pid and id has been taken over and is left alone.
func (l *Lock) Release() {
	pid, id, err := Read(l.path)
	if err == nil && (pid != os.Getpid() || id != l.id) {
		log.Warn().Str("path", l.path).Msg("Lock file no longer ours, leaving it")
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", l.path).Msg("Could not remove lock file")
	}
}

// Read parses the "pid instance-id" line from the lock file.
func Read(path string) (pid int, id string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, "", fmt.Errorf("malformed lock file %s", path)
	}
	pid, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("malformed lock file %s: %w", path, err)
	}
	if len(fields) > 1 {
		id = fields[1]
	}
	return pid, id, nil
}

// SignalReload sends SIGUSR2 to the daemon recorded in the lock file,
// making it reload its configuration.
func SignalReload(path string) error {
	pid, _, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no running instance (lock file %s missing)", path)
		}
		return err
	}
	if !processAlive(pid) {
		return fmt.Errorf("no running instance (pid %d is gone)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(unix.SIGUSR2); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}
	return nil
}

// processAlive probes pid with the null signal. EPERM still means the
// process exists, just under another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(unix.Signal(0))
	return err == nil || errors.Is(err, unix.EPERM)
}
