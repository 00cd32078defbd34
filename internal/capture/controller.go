// Package capture arms and disarms the microphone for one utterance and turns the
// collected PCM fragments into a single audio payload.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/smartspeak/internal/audio"
)

var (
	// ErrDeviceUnavailable wraps every failure to acquire the capture device.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrAlreadyArmed is returned by Arm while a recording is active.
	ErrAlreadyArmed = errors.New("capture already armed")
	// ErrNotArmed is returned by Disarm when no recording is active.
	ErrNotArmed = errors.New("capture not armed")
)

// Source is a live fragment stream from an opened device.
type Source interface {
	Fragments() <-chan []byte
	Stop() error
}

// Device opens a Source.
type Device interface {
	Open(ctx context.Context) (Source, error)
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context) (Source, error)

// Open implements Device.
func (f DeviceFunc) Open(ctx context.Context) (Source, error) {
	return f(ctx)
}

// Encoder finalizes concatenated PCM into a transmittable payload.
type Encoder interface {
	Encode(pcm []byte) (audio.Payload, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(pcm []byte) (audio.Payload, error)

// Encode implements Encoder.
func (f EncoderFunc) Encode(pcm []byte) (audio.Payload, error) {
	return f(pcm)
}

// Controller owns the capture device between Arm and Disarm/Release.
type Controller struct {
	device  Device
	encoder Encoder
	logger  *slog.Logger

	mu        sync.Mutex
	source    Source
	fragments [][]byte
	collected chan struct{}
}

// NewController wires a device and encoder.
func NewController(device Device, encoder Encoder, logger *slog.Logger) *Controller {
	return &Controller{device: device, encoder: encoder, logger: logger}
}

// Arm opens the device and starts collecting fragments.
func (c *Controller) Arm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		return ErrAlreadyArmed
	}
	if c.device == nil {
		return fmt.Errorf("%w: no device configured", ErrDeviceUnavailable)
	}

	source, err := c.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if source == nil {
		return fmt.Errorf("%w: device returned no source", ErrDeviceUnavailable)
	}

	c.source = source
	c.fragments = nil
	c.collected = make(chan struct{})
	go c.collect(source.Fragments(), c.collected)

	c.logf("capture armed")
	return nil
}

// Disarm stops the device and returns the encoded utterance.
// The device is released on every return path.
func (c *Controller) Disarm(_ context.Context) (audio.Payload, error) {
	c.mu.Lock()
	source := c.source
	collected := c.collected
	c.source = nil
	c.mu.Unlock()

	if source == nil {
		return audio.Payload{}, ErrNotArmed
	}

	stopErr := source.Stop()
	<-collected

	c.mu.Lock()
	fragments := c.fragments
	c.fragments = nil
	c.mu.Unlock()

	if stopErr != nil {
		return audio.Payload{}, fmt.Errorf("stop capture: %w", stopErr)
	}

	pcm := concat(fragments)
	c.logf("capture disarmed", "fragments", len(fragments), "bytes", len(pcm))

	if c.encoder == nil {
		return audio.Payload{}, errors.New("no encoder configured")
	}
	payload, err := c.encoder.Encode(pcm)
	if err != nil {
		return audio.Payload{}, fmt.Errorf("encode capture: %w", err)
	}
	return payload, nil
}

// Armed reports whether the device is currently held.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source != nil
}

// Release stops the device without producing a payload. Idempotent.
func (c *Controller) Release() error {
	c.mu.Lock()
	source := c.source
	collected := c.collected
	c.source = nil
	c.mu.Unlock()

	if source == nil {
		return nil
	}

	err := source.Stop()
	<-collected

	c.mu.Lock()
	c.fragments = nil
	c.mu.Unlock()

	c.logf("capture released")
	if err != nil {
		return fmt.Errorf("release capture: %w", err)
	}
	return nil
}

// collect appends fragments in arrival order until the source closes its stream.
func (c *Controller) collect(fragments <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for fragment := range fragments {
		if len(fragment) == 0 {
			continue
		}
		c.mu.Lock()
		c.fragments = append(c.fragments, fragment)
		c.mu.Unlock()
	}
}

func (c *Controller) logf(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, attrs...)
}

func concat(fragments [][]byte) []byte {
	total := 0
	for _, fragment := range fragments {
		total += len(fragment)
	}
	pcm := make([]byte, 0, total)
	for _, fragment := range fragments {
		pcm = append(pcm, fragment...)
	}
	return pcm
}
