// Package speech tracks one speech capture session on top of a recognition
// engine. The session is either Idle or Listening; the return to Idle is
// driven by the engine's end signal, never by Stop itself.
package speech

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const MsgStartFailed = "Could not start voice recognition. Please try again."

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Result is one recognition hypothesis. Interim results have Final unset.
type Result struct {
	Text  string
	Final bool
}

// ResultEvent carries the results the engine produced so far; only those from
// Index on are new.
type ResultEvent struct {
	Index   int
	Results []Result
}

type Handlers struct {
	OnResult func(ResultEvent)
	OnError  func(error)
	OnEnd    func()
}

// Engine is a speech recognizer. Start fails synchronously when capture
// cannot begin; everything after that is reported through the handlers.
type Engine interface {
	Start() error
	Stop() error
	SetHandlers(h Handlers)
}

// Error is the error surfaced by the session. Error() is the user facing text.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	OnTranscript  func(text string)
	OnStateChange func(state State)
	Logger        *slog.Logger
}

type Session struct {
	engine Engine
	opts   Options

	mu         sync.Mutex
	state      State
	transcript string
	err        error
	closed     bool
}

func NewSession(engine Engine, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		engine: engine,
		opts:   opts,
	}
	engine.SetHandlers(Handlers{
		OnResult: s.handleResult,
		OnError:  s.handleError,
		OnEnd:    s.handleEnd,
	})
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Listening() bool {
	return s.State() == Listening
}

func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start begins a capture. It is a no-op unless the session is Idle.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed || s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.transcript = ""
	s.err = nil
	s.state = Listening
	s.mu.Unlock()
	s.stateChanged(Listening)

	if err := s.engine.Start(); err != nil {
		s.opts.Logger.Error("Failed to start recognition", "err", err)
		s.mu.Lock()
		s.err = &Error{Msg: MsgStartFailed, Err: err}
		s.state = Idle
		s.mu.Unlock()
		s.stateChanged(Idle)
	}
}

// Stop asks the engine to finish. It is a no-op unless the session is Listening.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed || s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.engine.Stop(); err != nil {
		s.opts.Logger.Warn("Failed to stop recognition", "err", err)
	}
}

// Toggle starts listening when idle and stops when listening.
func (s *Session) Toggle() {
	if s.Listening() {
		s.Stop()
		return
	}
	s.Start()
}

// Close detaches the session from the engine and halts any capture. Engine
// signals delivered afterwards are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listening := s.state == Listening
	s.state = Idle
	s.mu.Unlock()

	s.engine.SetHandlers(Handlers{})
	if listening {
		if err := s.engine.Stop(); err != nil {
			s.opts.Logger.Warn("Failed to stop recognition", "err", err)
		}
	}
}

func (s *Session) handleResult(ev ResultEvent) {
	var sb strings.Builder
	for i := max(ev.Index, 0); i < len(ev.Results); i++ {
		if ev.Results[i].Final {
			sb.WriteString(ev.Results[i].Text)
		}
	}
	text := strings.ToLower(strings.TrimSpace(sb.String()))
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.transcript = text
	s.mu.Unlock()

	s.opts.Logger.Debug("Final transcript", "text", text)
	if s.opts.OnTranscript != nil {
		s.opts.OnTranscript(text)
	}
}

func (s *Session) handleError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = &Error{Msg: fmt.Sprintf("Speech recognition error: %v", err), Err: err}
	s.state = Idle
	s.mu.Unlock()

	s.opts.Logger.Error("Recognition error", "err", err)
	s.stateChanged(Idle)
}

func (s *Session) handleEnd() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = Idle
	s.mu.Unlock()

	if prev != Idle {
		s.stateChanged(Idle)
	}
}

func (s *Session) stateChanged(state State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}
