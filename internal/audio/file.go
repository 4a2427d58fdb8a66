package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"carevox/internal/speech"
)

// FileEngine transcribes a prerecorded file each time it is started.
type FileEngine struct {
	path string
	tr   Transcriber
	log  *slog.Logger

	mu     sync.Mutex
	h      speech.Handlers
	cancel context.CancelFunc
}

func NewFileEngine(path string, tr Transcriber, logger *slog.Logger) *FileEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileEngine{path: path, tr: tr, log: logger}
}

func (e *FileEngine) SetHandlers(h speech.Handlers) {
	e.mu.Lock()
	e.h = h
	e.mu.Unlock()
}

// Start decodes the file synchronously and transcribes it in the background.
func (e *FileEngine) Start() error {
	pcm, err := DecodeFile(e.path, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", e.path, err)
	}
	e.log.Debug("Decoded input file", "path", e.path, "samples", len(pcm))

	ctx, cancel := context.WithTimeout(context.Background(), transcribeLimit)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(ctx, cancel, pcm)
	return nil
}

// Stop abandons a transcription in progress.
func (e *FileEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *FileEngine) run(ctx context.Context, cancel context.CancelFunc, pcm []float32) {
	defer cancel()

	text, err := e.tr.Transcribe(ctx, pcm)

	e.mu.Lock()
	h := e.h
	e.mu.Unlock()

	switch {
	case err != nil:
		if h.OnError != nil {
			h.OnError(err)
		}
	case text != "" && h.OnResult != nil:
		h.OnResult(speech.ResultEvent{Results: []speech.Result{{Text: text, Final: true}}})
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}
