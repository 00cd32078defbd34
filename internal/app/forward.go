package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/ipc"
)

const forwardTimeout = 250 * time.Millisecond

var errNoOwner = errors.New("no active smartspeak session (run `smartspeak serve` or `smartspeak toggle`)")

// commandToggle forwards to a running owner, or becomes the owner and
// starts the first turn.
func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "toggle"})
	if handled {
		return r.printForwarded(resp, err)
	}
	return r.runOwner(ctx, cfg, logger, true)
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	if resp.LastError != "" {
		fmt.Fprintf(r.Stderr, "last error: %s\n", resp.LastError)
	}
	return 0
}

func (r Runner) commandLanguage(ctx context.Context, tag string) int {
	resp, code, ok := r.forward(ctx, ipc.Request{Command: "language", Language: tag})
	if !ok {
		return code
	}
	fmt.Fprintln(r.Stdout, resp.Language)
	return 0
}

func (r Runner) commandTranscript(ctx context.Context) int {
	resp, code, ok := r.forward(ctx, ipc.Request{Command: "transcript"})
	if !ok {
		return code
	}
	for _, turn := range resp.Turns {
		fmt.Fprintf(r.Stdout, "%s: %s\n", turn.Role, turn.Content)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, code, ok := r.forward(ctx, ipc.Request{Command: command})
	if !ok {
		return code
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// forward requires a running owner; ok is false when the exit code is final.
func (r Runner) forward(ctx context.Context, req ipc.Request) (ipc.Response, int, bool) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1, false
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoOwner)
		return ipc.Response{}, 1, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1, false
	}
	return resp, 0, true
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward sends req to the owner. handled is false only when no owner is
// listening; a rejected command is handled with a non-nil error.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.IsNoOwner(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
