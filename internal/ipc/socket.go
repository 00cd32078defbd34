package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another responsive owner holds the socket.
var ErrAlreadyRunning = errors.New("smartspeak owner already running")

const socketName = "smartspeak.sock"

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/smartspeak.sock.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// AcquireOptions tunes stale-socket recovery.
type AcquireOptions struct {
	// ProbeTimeout bounds the status call used to detect a live owner.
	ProbeTimeout time.Duration
	// Retries is the number of extra listen attempts after removing a stale socket.
	Retries int
	// Rescue runs after a stale socket is removed, e.g. to clear an indicator
	// the dead owner left behind.
	Rescue func(context.Context) error
}

// DefaultAcquireOptions are used by the owner process.
func DefaultAcquireOptions() AcquireOptions {
	return AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8}
}

// Lease is a listening owner socket.
type Lease struct {
	net.Listener

	path string
	info os.FileInfo
}

// Path returns the socket file path.
func (l *Lease) Path() string {
	return l.path
}

// Release closes the listener and removes the socket file unless another
// owner has since replaced it.
func (l *Lease) Release() error {
	closeErr := l.Listener.Close()
	if errors.Is(closeErr, net.ErrClosed) {
		closeErr = nil
	}

	current, err := os.Lstat(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return closeErr
	case err != nil:
		return errors.Join(closeErr, fmt.Errorf("stat socket %s: %w", l.path, err))
	case l.info != nil && !os.SameFile(l.info, current):
		return closeErr
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, fmt.Errorf("remove socket %s: %w", l.path, err))
	}
	return closeErr
}

// Acquire listens on path, replacing a stale socket left by a dead owner.
// A live owner yields ErrAlreadyRunning; an unresponsive one is left in place.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Lease, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultAcquireOptions().ProbeTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			// Release decides whether the file is still ours to remove.
			if unix, ok := listener.(*net.UnixListener); ok {
				unix.SetUnlinkOnClose(false)
			}
			_ = os.Chmod(path, 0o600)
			info, _ := os.Lstat(path)
			return &Lease{Listener: listener, path: path, info: info}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.Rescue != nil {
			_ = opts.Rescue(ctx)
		}

		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
}
