// Package tts is the spoken output sink. A new utterance always cancels the
// one in progress.
package tts

import (
	"log/slog"
)

type Engine interface {
	Say(text string) error
	Cancel() error
}

type Speaker struct {
	engine Engine
	log    *slog.Logger
}

func NewSpeaker(engine Engine, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{engine: engine, log: logger}
}

// Speak cancels any current utterance and starts text. Failures are logged.
func (s *Speaker) Speak(text string) {
	if s == nil || s.engine == nil || text == "" {
		return
	}
	if err := s.engine.Cancel(); err != nil {
		s.log.Warn("Failed to cancel speech", "err", err)
	}
	if err := s.engine.Say(text); err != nil {
		s.log.Error("Failed to voice out", "err", err)
		return
	}
	s.log.Debug("Speaking", "text", text)
}
