// Package app wires the CLI commands to config, logging, the session owner,
// and the IPC forwarding path.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/cli"
	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/doctor"
	"github.com/rbright/smartspeak/internal/logging"
	"github.com/rbright/smartspeak/internal/version"
)

const binaryName = "smartspeak"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Build constructs the owner's collaborators; nil uses the Pulse and
	// OpenAI-backed defaults.
	Build BuildFunc
	// Ready is called once the owner is serving IPC.
	Ready func()
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logger := r.Logger
	logRuntime, err := logging.New()
	if err != nil {
		// The log file is diagnostic only; keep running without it.
		fmt.Fprintf(r.Stderr, "warning: logging disabled: %v\n", err)
		logRuntime = logging.Runtime{Logger: logging.Discard()}
	}
	defer func() { _ = logRuntime.Close() }()
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	for _, path := range loadDotEnv(cfgLoaded.Path, logger) {
		logger.Debug("loaded env file", "path", path)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Options{})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandServe:
		return r.runOwner(ctx, cfgLoaded.Config, logger, false)
	case cli.CommandAsk:
		return r.commandAsk(ctx, cfgLoaded.Config, logger, parsed.Arg, parsed.Language)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandLanguage:
		return r.commandLanguage(ctx, parsed.Arg)
	case cli.CommandTranscript:
		return r.commandTranscript(ctx)
	case cli.CommandStart, cli.CommandStop, cli.CommandQuit:
		return r.forwardOrFail(ctx, string(parsed.Command))
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		fmt.Fprintln(r.Stdout, formatDevice(device))
	}
	return 0
}

func formatDevice(device audio.Device) string {
	defaultMark := " "
	if device.Default {
		defaultMark = "*"
	}
	return fmt.Sprintf(
		"%s id=%s | description=%q | state=%s | available=%s | muted=%s",
		defaultMark,
		device.ID,
		device.Description,
		device.State,
		yesNo(device.Available),
		yesNo(device.Muted),
	)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
