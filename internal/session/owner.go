package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbright/smartspeak/internal/fsm"
	"github.com/rbright/smartspeak/internal/ipc"
)

type action int

const (
	actionStart action = iota + 1
	actionStop
	actionToggle
)

// TurnHook receives every EndTurn outcome produced by the owner loop.
type TurnHook func(TurnResult, error)

// Run executes queued actions until ctx is cancelled or quit is requested.
// Quitting cancels an in-flight turn; the capture device is released on return.
func (s *Session) Run(ctx context.Context, hook TurnHook) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-runCtx.Done():
		}
	}()

	defer func() {
		if err := s.Close(); err != nil {
			s.logWarn("release capture failed", "error", err.Error())
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			return
		case a := <-s.actions:
			s.dispatch(runCtx, a, hook)
		}
	}
}

// RequestStart queues a turn start for the owner loop.
func (s *Session) RequestStart() bool {
	return s.enqueue(actionStart)
}

func (s *Session) dispatch(ctx context.Context, a action, hook TurnHook) {
	switch a {
	case actionToggle:
		switch s.State() {
		case fsm.StateIdle:
			a = actionStart
		case fsm.StateRecording:
			a = actionStop
		default:
			return
		}
	}

	switch a {
	case actionStart:
		if err := s.StartTurn(ctx); err != nil && !errors.Is(err, ErrInvalidState) {
			if hook != nil {
				hook(TurnResult{State: s.State(), StartedAt: time.Now(), FinishedAt: time.Now(), Err: err}, err)
			}
		}
	case actionStop:
		result, err := s.EndTurn(ctx)
		if errors.Is(err, ErrInvalidState) {
			return
		}
		if hook != nil {
			hook(result, err)
		}
	}
}

func (s *Session) enqueue(a action) bool {
	select {
	case s.actions <- a:
		return true
	default:
		return false
	}
}

// requestQuit closes the quit channel once.
func (s *Session) requestQuit() bool {
	first := false
	s.quitOnce.Do(func() {
		close(s.quit)
		first = true
	})
	return first
}

// Handle serves IPC commands for the owner session.
func (s *Session) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		resp := s.response("status")
		resp.LastError = s.LastError()
		return resp
	case "start":
		return s.requestStart()
	case "stop":
		return s.requestStop()
	case "toggle":
		return s.requestToggle()
	case "language":
		if req.Language != "" {
			if err := s.SetLanguage(req.Language); err != nil {
				return s.reject(err.Error())
			}
			return s.response("language set")
		}
		return s.response("language")
	case "transcript":
		resp := s.response("transcript")
		for _, turn := range s.Transcript() {
			resp.Turns = append(resp.Turns, ipc.Turn{
				ID:        turn.ID,
				Role:      string(turn.Role),
				Content:   turn.Content,
				CreatedAt: turn.CreatedAt.Format(time.RFC3339),
			})
		}
		return resp
	case "quit":
		if s.requestQuit() {
			return s.response("quit requested")
		}
		return s.response("quit already requested")
	default:
		return s.reject(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func (s *Session) requestStart() ipc.Response {
	state := s.State()
	if state != fsm.StateIdle {
		return s.reject(fmt.Sprintf("cannot start from state %s", state))
	}
	if !s.enqueue(actionStart) {
		return s.response("start already requested")
	}
	return s.response("start requested")
}

func (s *Session) requestStop() ipc.Response {
	state := s.State()
	if state == fsm.StateProcessing {
		return s.reject("already processing")
	}
	if state != fsm.StateRecording {
		return s.reject(fmt.Sprintf("cannot stop from state %s", state))
	}
	if !s.enqueue(actionStop) {
		return s.response("stop already requested")
	}
	return s.response("stop requested")
}

func (s *Session) requestToggle() ipc.Response {
	state := s.State()
	if state == fsm.StateProcessing {
		return s.reject("already processing")
	}
	if !s.enqueue(actionToggle) {
		return s.response("toggle already requested")
	}
	return s.response("toggle requested")
}

func (s *Session) response(message string) ipc.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ipc.Response{
		OK:        true,
		State:     string(s.state),
		Message:   message,
		Language:  s.language,
		SessionID: s.id,
	}
}

func (s *Session) reject(message string) ipc.Response {
	resp := s.response("")
	resp.OK = false
	resp.Error = message
	return resp
}
