package capture

import (
	"context"
	"log/slog"

	"github.com/rbright/smartspeak/internal/audio"
)

// PulseDevice resolves the configured input on every Open so hot-plugged or
// newly unmuted sources are picked up between turns.
type PulseDevice struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

// Open implements Device.
func (d PulseDevice) Open(ctx context.Context) (Source, error) {
	selection, err := audio.SelectDevice(ctx, d.Input, d.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && d.Logger != nil {
		d.Logger.Warn(selection.Warning)
	}

	captureSource, err := audio.StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	if d.Logger != nil {
		d.Logger.Info("audio device selected", "device", selection.Device.Label(), "fallback", selection.Fallback)
	}
	return captureSource, nil
}
