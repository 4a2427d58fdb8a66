// Package audio captures speech for the recognition session: from the default
// microphone through portaudio, or from an audio file.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"carevox/internal/speech"
)

const (
	frameSize        = 320 // 20ms
	silenceThreshRMS = 0.015
	transcribeLimit  = time.Minute
)

// Init must be called once before any MicEngine starts.
func Init() error {
	return portaudio.Initialize()
}

func Terminate() {
	portaudio.Terminate()
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

type MicOptions struct {
	// MaxDuration caps one capture. Defaults to 15s.
	MaxDuration time.Duration
	// SilenceTimeout ends the capture after speech followed by this much
	// silence. Zero keeps recording until Stop.
	SilenceTimeout time.Duration
	// Ducker lowers other audio streams while listening. Optional.
	Ducker *Ducker
	Logger *slog.Logger
}

// MicEngine records from the default input device and emits one final
// result per capture.
type MicEngine struct {
	tr  Transcriber
	opt MicOptions

	mu      sync.Mutex
	h       speech.Handlers
	stop    chan struct{}
	running bool
}

func NewMicEngine(tr Transcriber, opt MicOptions) *MicEngine {
	if opt.MaxDuration <= 0 {
		opt.MaxDuration = 15 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &MicEngine{tr: tr, opt: opt}
}

func (e *MicEngine) SetHandlers(h speech.Handlers) {
	e.mu.Lock()
	e.h = h
	e.mu.Unlock()
}

func (e *MicEngine) handlers() speech.Handlers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.h
}

// Start opens the input stream. Failures to open it are returned here.
func (e *MicEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("capture already running")
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	e.stop = make(chan struct{})
	e.running = true
	go e.capture(stream, buf, e.stop)

	return nil
}

// Stop ends the capture; the result and end signal follow asynchronously.
func (e *MicEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	return nil
}

func (e *MicEngine) capture(stream *portaudio.Stream, buf []float32, stop <-chan struct{}) {
	log := e.opt.Logger

	if e.opt.Ducker != nil {
		if err := e.opt.Ducker.Duck(context.Background()); err != nil {
			log.Warn("Failed to duck audio", "err", err)
		}
	}

	pcm, err := record(stream, buf, stop, e.opt.MaxDuration, e.opt.SilenceTimeout)
	if cerr := stream.Stop(); cerr != nil {
		log.Debug("Failed to stop input stream", "err", cerr)
	}
	stream.Close()

	if e.opt.Ducker != nil {
		if err := e.opt.Ducker.Restore(context.Background()); err != nil {
			log.Warn("Failed to restore audio", "err", err)
		}
	}

	if err == nil && len(pcm) > 0 {
		log.Debug("Captured audio", "seconds", float64(len(pcm))/SampleRate)
		ctx, cancel := context.WithTimeout(context.Background(), transcribeLimit)
		var text string
		text, err = e.tr.Transcribe(ctx, pcm)
		cancel()
		if err == nil && text != "" {
			if h := e.handlers(); h.OnResult != nil {
				h.OnResult(speech.ResultEvent{Results: []speech.Result{{Text: text, Final: true}}})
			}
		}
	}

	e.mu.Lock()
	e.running = false
	e.stop = nil
	h := e.h
	e.mu.Unlock()

	if err != nil && h.OnError != nil {
		h.OnError(err)
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

type frameReader interface {
	Read() error
}

// record reads frames until stop, maxDur, or trailing silence after speech.
func record(stream frameReader, buf []float32, stop <-chan struct{}, maxDur, silence time.Duration) ([]float32, error) {
	frameDur := time.Duration(len(buf)) * time.Second / SampleRate
	maxFrames := int(maxDur / frameDur)
	silentLimit := int(silence / frameDur)

	out := make([]float32, 0, SampleRate*3)
	var (
		speaking bool
		quiet    int
	)
	for range maxFrames {
		select {
		case <-stop:
			return out, nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		out = append(out, buf...)

		if silentLimit == 0 {
			continue
		}
		if rms(buf) > silenceThreshRMS {
			speaking = true
			quiet = 0
		} else if speaking {
			quiet++
			if quiet >= silentLimit {
				break
			}
		}
	}
	return out, nil
}
