// Package hypr speaks the hyprsunset IPC protocol over the Hyprland
// session's unix socket and supervises the hyprsunset process when the
// daemon owns it.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dokzlo13/duskd/internal/transition"
)

// ErrUnavailable marks a connect failure: the socket is missing or
// nothing is listening. Callers treat it as retryable, not fatal.
var ErrUnavailable = errors.New("hyprsunset unavailable")

const socketName = ".hyprsunset.sock"

// InSession reports whether the process runs inside a Hyprland
// session.
func InSession() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

// SocketPath derives the hyprsunset control socket location from the
// session environment.
func SocketPath() (string, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	signature := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if signature == "" {
		return "", errors.New("HYPRLAND_INSTANCE_SIGNATURE is not set (not in a Hyprland session?)")
	}
	return filepath.Join(runtimeDir, "hypr", signature, socketName), nil
}

// Client sends temperature/gamma commands to hyprsunset. One
// connection is held per Apply so the pair cannot be split across
// backend restarts; every read and write carries a bounded deadline so
// a hung backend cannot stall the caller.
type Client struct {
	socketPath   string
	timeout      time.Duration
	shuttingDown *atomic.Bool
}

// NewClient creates a client for the given socket. shuttingDown, when
// set and true, short-circuits Apply to an immediate success so late
// reconcile ticks cannot fight the final state written during
// shutdown.
func NewClient(socketPath string, timeout time.Duration, shuttingDown *atomic.Bool) *Client {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		socketPath:   socketPath,
		timeout:      timeout,
		shuttingDown: shuttingDown,
	}
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "hyprland"
}

// Apply sends the temperature and gamma commands over one connection.
// Exactly one attempt: retry and backoff belong to the caller.
func (c *Client) Apply(ctx context.Context, target transition.Target) error {
	if c.shuttingDown != nil && c.shuttingDown.Load() {
		return nil
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	if err := c.command(conn, "temperature "+strconv.Itoa(target.Temperature)); err != nil {
		return fmt.Errorf("temperature command: %w", err)
	}
	if err := c.command(conn, "gamma "+FormatGamma(target.Gamma)); err != nil {
		return fmt.Errorf("gamma command: %w", err)
	}
	return nil
}

// command performs one request/response exchange. Commands are plain
// ASCII without a trailing newline; a response mentioning "Invalid" or
// "error" is a rejection.
func (c *Client) command(conn net.Conn, cmd string) error {
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return err
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	reply := string(buf[:n])
	if replyIsError(reply) {
		return fmt.Errorf("backend rejected %q: %s", cmd, strings.TrimSpace(reply))
	}
	return nil
}

func replyIsError(reply string) bool {
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "invalid") || strings.Contains(lower, "error")
}

// Probe performs a bare connect to check responsiveness. No data is
// sent and nothing is logged at this level.
func (c *Client) Probe(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// FormatGamma renders a gamma percentage the way hyprsunset parses it,
// without a trailing zero fraction.
func FormatGamma(gamma float64) string {
	return strconv.FormatFloat(gamma, 'f', -1, 64)
}
