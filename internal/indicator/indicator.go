// Package indicator handles visual state notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/hypr"
)

const (
	colorRecording  = "rgb(89b4fa)"
	colorProcessing = "rgb(cba6f7)"
	colorError      = "rgb(f38ba8)"

	// persistentTimeoutMS keeps state notices up until Hide replaces them.
	persistentTimeoutMS = 300000
	defaultErrorMS      = 1200
	dispatchTimeout     = 400 * time.Millisecond
	cueWaitLimit        = 600 * time.Millisecond
)

// Notifier routes session feedback to Hyprland or desktop notifications and
// plays short audio cues over Pulse.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// New creates a notifier from config. Notice text follows $LANG.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessages(resolveLocale(os.Getenv("LANG"))),
	}
}

// ShowRecording signals capture start and emits the start cue.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(ctx, cueStart)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 1, persistentTimeoutMS, colorRecording, n.messages.recording)
	})
}

// ShowProcessing signals that the turn is being transcribed and answered.
func (n *Notifier) ShowProcessing(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 1, persistentTimeoutMS, colorProcessing, n.messages.processing)
	})
}

// ShowError displays a transient notice and emits the error cue.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(ctx, cueError)
	if !n.cfg.Enable {
		return
	}
	text = n.messages.translate(text)
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorMS
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 3, timeout, colorError, text)
	})
}

// CueStop emits the capture-stopped cue.
func (n *Notifier) CueStop(ctx context.Context) {
	n.playCue(ctx, cueStop)
}

// CueComplete emits the reply-ready cue and returns once it has played, or
// after cueWaitLimit, so the reply does not start over the chime.
func (n *Notifier) CueComplete(ctx context.Context) {
	done := n.playCue(ctx, cueComplete)
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(cueWaitLimit):
	}
}

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) desktop() bool {
	return n.cfg.Backend == config.IndicatorBackendDesktop
}

func (n *Notifier) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if n.desktop() {
		urgency := urgencyLow
		if color == colorError {
			urgency = urgencyHigh
		}
		return n.notifyDesktop(ctx, timeoutMS, text, urgency)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktop() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string, urgency int) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := n.cfg.DesktopAppName
	if appName == "" {
		appName = "smartspeak-indicator"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS, urgency)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback off the caller's goroutine. Cues outlive
// the turn context so a completed turn still gets its chime.
// The returned channel closes when the cue has finished.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) <-chan struct{} {
	done := make(chan struct{})
	if !n.cfg.SoundEnable {
		close(done)
		return done
	}
	cueCtx := context.WithoutCancel(ctx)
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		defer close(done)
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(cueCtx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
	return done
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
