package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/capture"
	"github.com/rbright/smartspeak/internal/fsm"
	"github.com/rbright/smartspeak/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestTurnHappyPath(t *testing.T) {
	var (
		gotPayload  audio.Payload
		gotSession  string
		gotLanguage string
		gotVoice    string
		statesSeen  []fsm.State
	)

	var h *harness
	h = newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1"), []byte("f2")}}, stages{
		transcribe: func(_ context.Context, payload audio.Payload, _ string) (string, error) {
			statesSeen = append(statesSeen, h.session.State())
			gotPayload = payload
			return "hello", nil
		},
		respond: func(_ context.Context, text string, sessionID string, language string) (string, error) {
			require.Equal(t, "hello", text)
			gotSession = sessionID
			gotLanguage = language
			return "hi there", nil
		},
		synthesize: func(_ context.Context, text string, voice string) (audio.Payload, error) {
			require.Equal(t, "hi there", text)
			gotVoice = voice
			return audio.Payload{Data: []byte("<bytes>"), MediaType: audio.MediaTypeWAV}, nil
		},
	})
	s := h.session

	require.Equal(t, fsm.StateIdle, s.State())
	require.NoError(t, s.StartTurn(context.Background()))
	require.Equal(t, fsm.StateRecording, s.State())

	result, err := s.EndTurn(context.Background())
	require.NoError(t, err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, []fsm.State{fsm.StateProcessing}, statesSeen)

	require.Equal(t, []byte("f1f2"), gotPayload.Data)
	require.Equal(t, s.ID(), gotSession)
	require.Equal(t, "en", gotLanguage)
	require.Equal(t, "nova", gotVoice)

	transcript := s.Transcript()
	require.Len(t, transcript, 2)
	require.Equal(t, RoleUser, transcript[0].Role)
	require.Equal(t, "hello", transcript[0].Content)
	require.Equal(t, RoleAssistant, transcript[1].Role)
	require.Equal(t, "hi there", transcript[1].Content)
	require.NotEqual(t, transcript[0].ID, transcript[1].ID)
	require.Equal(t, time.UTC, transcript[0].CreatedAt.Location())

	played := h.player.played()
	require.Len(t, played, 1)
	require.Equal(t, []byte("<bytes>"), played[0].Data)

	require.True(t, h.device.allStopped())
	require.Equal(t, int32(1), h.indicator.recording.Load())
	require.Equal(t, int32(1), h.indicator.processing.Load())
	require.Equal(t, int32(1), h.indicator.completes.Load())
	require.Empty(t, h.indicator.notices())
	require.Equal(t, []string{"completed"}, h.observer.finished())
	require.Len(t, h.listener.turns, 2)
	require.Equal(t, 4, result.CapturedBytes)
	require.Equal(t, 7, result.ReplyBytes)
}

func TestStartTurnDeviceDenied(t *testing.T) {
	h := newHarness(t, &fakeDevice{openErr: errors.New("permission denied")}, stages{})
	s := h.session

	err := s.StartTurn(context.Background())
	require.ErrorIs(t, err, capture.ErrDeviceUnavailable)
	require.Equal(t, fsm.StateIdle, s.State())
	require.Empty(t, s.Transcript())
	require.Equal(t, []string{NoticeMicrophone}, h.indicator.notices())
	require.Equal(t, int32(1), h.observer.deviceUnavailable.Load())
	require.Equal(t, NoticeMicrophone, s.LastError())

	// The session stays usable after a denied device.
	h.device.openErr = nil
	require.NoError(t, s.StartTurn(context.Background()))
	require.Equal(t, fsm.StateRecording, s.State())
	require.NoError(t, s.Close())
}

func TestEmptyTranscriptionFailsWithoutTurns(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{
		transcribe: func(context.Context, audio.Payload, string) (string, error) { return "", nil },
	})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	result, err := s.EndTurn(context.Background())

	require.ErrorIs(t, err, pipeline.ErrTranscription)
	require.ErrorIs(t, result.Err, pipeline.ErrEmptyTranscript)
	require.Empty(t, s.Transcript())
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, []string{NoticeProcessing}, h.indicator.notices())
	require.Empty(t, h.player.played())
	require.Equal(t, []string{"transcribe_failed"}, h.observer.finished())
}

func TestLaterStageFailureKeepsUserTurn(t *testing.T) {
	tests := []struct {
		name     string
		st       stages
		sentinel error
	}{
		{
			name: "dialogue",
			st: stages{respond: func(context.Context, string, string, string) (string, error) {
				return "", errors.New("upstream 500")
			}},
			sentinel: pipeline.ErrDialogue,
		},
		{
			name: "synthesis",
			st: stages{synthesize: func(context.Context, string, string) (audio.Payload, error) {
				return audio.Payload{}, errors.New("voice unavailable")
			}},
			sentinel: pipeline.ErrSynthesis,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, tc.st)
			s := h.session

			require.NoError(t, s.StartTurn(context.Background()))
			result, err := s.EndTurn(context.Background())
			require.ErrorIs(t, err, tc.sentinel)
			require.Equal(t, "hello", result.UserText)

			transcript := s.Transcript()
			require.Len(t, transcript, 1)
			require.Equal(t, RoleUser, transcript[0].Role)
			require.Equal(t, "hello", transcript[0].Content)
			require.Equal(t, fsm.StateIdle, s.State())
			require.Equal(t, []string{NoticeProcessing}, h.indicator.notices())
			require.Empty(t, h.player.played())
		})
	}
}

func TestSetLanguageDuringTurnDoesNotAffectInFlightRespond(t *testing.T) {
	transcribing := make(chan struct{})
	release := make(chan struct{})
	var gotLanguage atomic.Value

	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{
		transcribe: func(context.Context, audio.Payload, string) (string, error) {
			close(transcribing)
			<-release
			return "hello", nil
		},
		respond: func(_ context.Context, _ string, _ string, language string) (string, error) {
			gotLanguage.Store(language)
			return "hi there", nil
		},
	})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	done := make(chan error, 1)
	go func() {
		_, err := s.EndTurn(context.Background())
		done <- err
	}()

	<-transcribing
	require.NoError(t, s.SetLanguage("he"))
	require.Equal(t, "he", s.Language())
	close(release)

	require.NoError(t, <-done)
	require.Equal(t, "en", gotLanguage.Load())
	require.Equal(t, fsm.StateIdle, s.State())
}

func TestExplicitLanguagePassedToStages(t *testing.T) {
	var transcribeHint, respondLanguage string
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{
		transcribe: func(_ context.Context, _ audio.Payload, language string) (string, error) {
			transcribeHint = language
			return "שלום", nil
		},
		respond: func(_ context.Context, _ string, _ string, language string) (string, error) {
			respondLanguage = language
			return "היי", nil
		},
	})
	s := h.session
	require.NoError(t, s.SetLanguage("he"))

	require.NoError(t, s.StartTurn(context.Background()))
	result, err := s.EndTurn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "he", result.Language)
	require.Equal(t, "he", transcribeHint)
	require.Equal(t, "he", respondLanguage)
}

func TestOutOfStateCallsAreNoOps(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	s := h.session

	_, err := s.EndTurn(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, fsm.StateIdle, s.State())

	require.NoError(t, s.StartTurn(context.Background()))
	require.ErrorIs(t, s.StartTurn(context.Background()), ErrInvalidState)
	require.Equal(t, int32(1), h.device.opens.Load())
	require.Equal(t, fsm.StateRecording, s.State())

	_, err = s.EndTurn(context.Background())
	require.NoError(t, err)

	_, err = s.EndTurn(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, fsm.StateIdle, s.State())
	require.Len(t, s.Transcript(), 2)
	require.Len(t, h.observer.finished(), 1)
}

func TestStartTurnDuringProcessingIsRejected(t *testing.T) {
	processing := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{
		respond: func(context.Context, string, string, string) (string, error) {
			close(processing)
			<-release
			return "hi there", nil
		},
	})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.EndTurn(context.Background())
	}()

	<-processing
	require.Equal(t, fsm.StateProcessing, s.State())
	require.ErrorIs(t, s.StartTurn(context.Background()), ErrInvalidState)
	_, err := s.EndTurn(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, int32(1), h.device.opens.Load())

	close(release)
	<-done
	require.Equal(t, fsm.StateIdle, s.State())
}

func TestArmDisarmSequencesFollowStateMachine(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	s := h.session

	ops := []string{"end", "start", "start", "end", "end", "start", "end", "start", "end"}
	var observed []fsm.State
	observed = append(observed, s.State())
	for _, op := range ops {
		before := s.State()
		switch op {
		case "start":
			_ = s.StartTurn(context.Background())
		case "end":
			_, _ = s.EndTurn(context.Background())
		}
		after := s.State()
		if after != before {
			observed = append(observed, after)
		}
	}

	for i := 1; i < len(observed); i++ {
		prev, next := observed[i-1], observed[i]
		switch prev {
		case fsm.StateIdle:
			require.Equal(t, fsm.StateRecording, next)
		case fsm.StateRecording:
			// EndTurn runs processing synchronously and lands back in idle.
			require.Equal(t, fsm.StateIdle, next)
		}
	}
	require.Equal(t, fsm.StateIdle, s.State())
	require.Len(t, s.Transcript(), 6)
	require.True(t, h.device.allStopped())
}

func TestDisarmFailureReleasesDeviceAndReturnsIdle(t *testing.T) {
	device := &fakeDevice{fragments: [][]byte{[]byte("f1")}}
	indicator := &fakeIndicator{}
	observer := &fakeObserver{}
	s := New(Options{
		Capture: capture.NewController(device, capture.EncoderFunc(func([]byte) (audio.Payload, error) {
			return audio.Payload{}, errors.New("encoder exploded")
		}), nil),
		Pipeline:  pipeline.New(nil, nil, nil, pipeline.Options{}),
		Indicator: indicator,
		Observer:  observer,
	})

	require.NoError(t, s.StartTurn(context.Background()))
	result, err := s.EndTurn(context.Background())
	require.ErrorIs(t, err, pipeline.ErrCapture)
	require.NotErrorIs(t, err, pipeline.ErrTranscription)
	require.ErrorContains(t, result.Err, "encoder exploded")
	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, "CaptureError", stageErr.Kind())
	require.Equal(t, []string{"capture_failed"}, observer.finished())
	require.Equal(t, fsm.StateIdle, s.State())
	require.True(t, device.allStopped())
	require.Equal(t, []string{NoticeProcessing}, indicator.notices())
	require.Empty(t, s.Transcript())
}

func TestPlaybackFailureDoesNotFailTurn(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	h.player.err = errors.New("sink gone")
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	result, err := s.EndTurn(context.Background())
	require.NoError(t, err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Len(t, s.Transcript(), 2)
	require.Equal(t, []string{NoticePlayback}, h.indicator.notices())
	require.Equal(t, int32(1), h.indicator.completes.Load())
}

func TestCompletionCuePrecedesReplyPlayback(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	var cuesBeforePlay int32 = -1
	h.player.onPlay = func() { cuesBeforePlay = h.indicator.completes.Load() }
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	_, err := s.EndTurn(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), cuesBeforePlay)
	require.Len(t, h.player.played(), 1)
}

func TestStageTimeoutReturnsSessionToIdle(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{
		respond: func(ctx context.Context, _ string, _ string, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		timeout: 20 * time.Millisecond,
	})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	_, err := s.EndTurn(context.Background())
	require.ErrorIs(t, err, pipeline.ErrDialogue)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, fsm.StateIdle, s.State())
	require.Len(t, s.Transcript(), 1)
}

type silentRunner struct{}

func (silentRunner) Run(context.Context, pipeline.Request, func(pipeline.Event)) pipeline.Result {
	return pipeline.Result{}
}

func TestRunnerWithoutTerminalEventDoesNotParkSession(t *testing.T) {
	device := &fakeDevice{fragments: [][]byte{[]byte("f1")}}
	indicator := &fakeIndicator{}
	s := New(Options{
		Capture:   capture.NewController(device, rawEncoder, nil),
		Pipeline:  silentRunner{},
		Indicator: indicator,
	})

	require.NoError(t, s.StartTurn(context.Background()))
	_, err := s.EndTurn(context.Background())
	require.ErrorContains(t, err, "without a terminal event")
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, []string{NoticeProcessing}, indicator.notices())
}

func TestOnPipelineEventOutsideProcessingIsIgnored(t *testing.T) {
	h := newHarness(t, &fakeDevice{}, stages{})
	s := h.session

	s.OnPipelineEvent(context.Background(), pipeline.UserTextReady("stray"))
	s.OnPipelineEvent(context.Background(), pipeline.AudioReady(audio.Payload{Data: []byte{1}}))
	s.OnPipelineEvent(context.Background(), pipeline.TurnFailed(&pipeline.StageError{Stage: pipeline.StageRespond}))

	require.Empty(t, s.Transcript())
	require.Empty(t, h.player.played())
	require.Empty(t, h.indicator.notices())
	require.Equal(t, fsm.StateIdle, s.State())
}

func TestCloseReleasesArmedDevice(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	require.NoError(t, s.Close())
	require.True(t, h.device.allStopped())
	require.NoError(t, s.Close())
}

func TestSetLanguageValidation(t *testing.T) {
	s := New(Options{})
	require.Equal(t, "auto", s.Language())

	require.NoError(t, s.SetLanguage("pt-BR"))
	require.Equal(t, "pt-BR", s.Language())

	require.NoError(t, s.SetLanguage(""))
	require.Equal(t, "auto", s.Language())

	require.Error(t, s.SetLanguage("not a tag"))
	require.Error(t, s.SetLanguage("en\tUS"))
	require.Equal(t, "auto", s.Language())

	for _, tag := range []string{"zh_TW", "en_US", "x-klingon", "deva"} {
		require.NoError(t, s.SetLanguage(tag))
		require.Equal(t, tag, s.Language())
	}

	require.Equal(t, "he", New(Options{Language: " he "}).Language())
}

func TestTranscriptReturnsCopy(t *testing.T) {
	h := newHarness(t, &fakeDevice{fragments: [][]byte{[]byte("f1")}}, stages{})
	s := h.session

	require.NoError(t, s.StartTurn(context.Background()))
	_, err := s.EndTurn(context.Background())
	require.NoError(t, err)

	transcript := s.Transcript()
	transcript[0].Content = "mutated"
	require.Equal(t, "hello", s.Transcript()[0].Content)
}

func TestSessionIDIsStable(t *testing.T) {
	s := New(Options{})
	require.NotEmpty(t, s.ID())
	require.Equal(t, s.ID(), s.ID())
	require.NotEqual(t, s.ID(), New(Options{}).ID())
}
