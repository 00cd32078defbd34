package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Player plays one payload at a time; a new Play replaces the current playback.
type Player struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *playback
}

// NewPlayer constructs a Pulse-backed reply player.
func NewPlayer(logger *slog.Logger) *Player {
	return &Player{logger: logger}
}

// Play decodes payload and starts playback without waiting for it to finish.
func (p *Player) Play(ctx context.Context, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples, format, err := payload.Samples()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.New("payload has no samples")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.close()
		p.current = nil
	}

	pb, err := startPlayback(samples, format, "smartspeak reply")
	if err != nil {
		return err
	}
	p.current = pb

	go func() {
		err := pb.wait()
		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()
		if err != nil && p.logger != nil {
			p.logger.Warn("reply playback failed", "error", err.Error())
		}
	}()
	return nil
}

// Wait blocks until the active playback drains. Cancelling ctx stops it.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb == nil {
		return nil
	}

	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

// Stop interrupts the active playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.close()
		p.current = nil
	}
}

// PlaySamples plays mono s16 samples at rate and blocks until drained.
func PlaySamples(ctx context.Context, samples []int16, rate int, mediaName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pb, err := startPlayback(samples, Format{SampleRate: rate, Channels: 1}, mediaName)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- pb.wait() }()

	select {
	case <-ctx.Done():
		pb.close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

type playback struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
	once   sync.Once
	done   chan struct{}
}

func startPlayback(samples []int16, format Format, mediaName string) (*playback, error) {
	layout := pulse.PlaybackMono
	switch format.Channels {
	case 1:
	case 2:
		layout = pulse.PlaybackStereo
	default:
		return nil, fmt.Errorf("unsupported channel count %d", format.Channels)
	}

	client, err := newClient("audio-speakers")
	if err != nil {
		return nil, err
	}

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		layout,
		pulse.PlaybackSampleRate(format.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}

	stream.Start()
	return &playback{client: client, stream: stream, done: make(chan struct{})}, nil
}

// wait blocks until the stream drains, then releases it.
func (pb *playback) wait() error {
	defer close(pb.done)
	pb.stream.Drain()
	err := pb.stream.Error()
	pb.close()
	if err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return nil
}

func (pb *playback) close() {
	pb.once.Do(func() {
		pb.stream.Stop()
		pb.stream.Close()
		pb.client.Close()
	})
}
