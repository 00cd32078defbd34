package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/capture"
	"github.com/rbright/smartspeak/internal/fsm"
	"github.com/rbright/smartspeak/internal/pipeline"
)

type fakeIndicator struct {
	recording  atomic.Int32
	processing atomic.Int32
	stopCues   atomic.Int32
	completes  atomic.Int32
	hides      atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (f *fakeIndicator) ShowRecording(context.Context)  { f.recording.Add(1) }
func (f *fakeIndicator) ShowProcessing(context.Context) { f.processing.Add(1) }
func (f *fakeIndicator) ShowError(_ context.Context, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}
func (f *fakeIndicator) CueStop(context.Context)     { f.stopCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context) { f.completes.Add(1) }
func (f *fakeIndicator) Hide(context.Context)        { f.hides.Add(1) }

func (f *fakeIndicator) notices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

type fakePlayer struct {
	err    error
	onPlay func()

	mu       sync.Mutex
	payloads []audio.Payload
}

func (f *fakePlayer) Play(_ context.Context, payload audio.Payload) error {
	if f.onPlay != nil {
		f.onPlay()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakePlayer) played() []audio.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Payload(nil), f.payloads...)
}

type fakeObserver struct {
	deviceUnavailable atomic.Int32

	mu       sync.Mutex
	outcomes []string
}

func (f *fakeObserver) DeviceUnavailable() { f.deviceUnavailable.Add(1) }

func (f *fakeObserver) TurnFinished(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeObserver) finished() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.outcomes...)
}

type recordingListener struct {
	mu    sync.Mutex
	turns []Turn
}

func (l *recordingListener) OnTurn(turn Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
}

// fakeSource replays fixed fragments and counts Stop calls.
type fakeSource struct {
	fragments chan []byte
	stops     atomic.Int32
}

func (s *fakeSource) Fragments() <-chan []byte { return s.fragments }

func (s *fakeSource) Stop() error {
	if s.stops.Add(1) == 1 {
		close(s.fragments)
	}
	return nil
}

// fakeDevice opens a new fakeSource per Arm, or fails with openErr.
type fakeDevice struct {
	fragments [][]byte
	openErr   error

	opens   atomic.Int32
	mu      sync.Mutex
	sources []*fakeSource
}

func (d *fakeDevice) Open(context.Context) (capture.Source, error) {
	d.opens.Add(1)
	if d.openErr != nil {
		return nil, d.openErr
	}
	src := &fakeSource{fragments: make(chan []byte, len(d.fragments)+1)}
	for _, fragment := range d.fragments {
		src.fragments <- fragment
	}
	d.mu.Lock()
	d.sources = append(d.sources, src)
	d.mu.Unlock()
	return src, nil
}

// allStopped reports whether every opened source was released.
func (d *fakeDevice) allStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, src := range d.sources {
		if src.stops.Load() == 0 {
			return false
		}
	}
	return true
}

var rawEncoder = capture.EncoderFunc(func(pcm []byte) (audio.Payload, error) {
	return audio.Payload{Data: pcm, MediaType: audio.PCMMediaType(audio.CaptureSampleRate)}, nil
})

type harness struct {
	session   *Session
	device    *fakeDevice
	indicator *fakeIndicator
	player    *fakePlayer
	observer  *fakeObserver
	listener  *recordingListener
}

type stages struct {
	transcribe pipeline.TranscriberFunc
	respond    pipeline.ResponderFunc
	synthesize pipeline.SynthesizerFunc
	timeout    time.Duration
}

func newHarness(t *testing.T, device *fakeDevice, st stages) *harness {
	t.Helper()

	if st.transcribe == nil {
		st.transcribe = func(context.Context, audio.Payload, string) (string, error) { return "hello", nil }
	}
	if st.respond == nil {
		st.respond = func(context.Context, string, string, string) (string, error) { return "hi there", nil }
	}
	if st.synthesize == nil {
		st.synthesize = func(context.Context, string, string) (audio.Payload, error) {
			return audio.Payload{Data: []byte("<bytes>"), MediaType: audio.PCMMediaType(24000)}, nil
		}
	}

	h := &harness{
		device:    device,
		indicator: &fakeIndicator{},
		player:    &fakePlayer{},
		observer:  &fakeObserver{},
		listener:  &recordingListener{},
	}
	h.session = New(Options{
		Capture:   capture.NewController(device, rawEncoder, nil),
		Pipeline:  pipeline.New(st.transcribe, st.respond, st.synthesize, pipeline.Options{StageTimeout: st.timeout}),
		Indicator: h.indicator,
		Player:    h.player,
		Listener:  h.listener,
		Observer:  h.observer,
	})
	return h
}

func waitForState(t *testing.T, s *Session, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", want, s.State())
}
