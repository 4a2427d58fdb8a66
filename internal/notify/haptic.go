package notify

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)
	toneHz     = 880
	toneVolume = 0.3
)

// DefaultPattern is the pulse played on a listening toggle.
var DefaultPattern = []time.Duration{50 * time.Millisecond}

// Haptic stands in for vibration on a desktop: it plays pulse patterns as
// short tones and can play a cue file when listening starts.
type Haptic struct {
	log *slog.Logger
	cue string

	once sync.Once
	err  error
}

// NewHaptic returns a Haptic. cue is an optional mp3 played by Cue.
func NewHaptic(cue string, logger *slog.Logger) *Haptic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Haptic{cue: cue, log: logger}
}

func (h *Haptic) init() error {
	h.once.Do(func() {
		h.err = speaker.Init(sampleRate, sampleRate.N(time.Second/20))
		if h.err != nil {
			h.log.Warn("Audio output unavailable, pulses disabled", "err", h.err)
		}
	})
	return h.err
}

// Pulse plays the pattern without blocking. Durations alternate between tone
// and pause, starting with a tone.
func (h *Haptic) Pulse(pattern ...time.Duration) {
	if len(pattern) == 0 {
		pattern = DefaultPattern
	}
	if h.init() != nil {
		return
	}
	speaker.Play(patternStreamer(sampleRate, pattern))
}

// Cue plays the cue file and waits for it to finish.
func (h *Haptic) Cue() error {
	if h.cue == "" {
		return nil
	}
	if err := h.init(); err != nil {
		return err
	}

	f, err := os.Open(h.cue)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	done := make(chan struct{})
	speaker.Play(beep.Seq(beep.Resample(4, format.SampleRate, sampleRate, streamer), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

func patternStreamer(sr beep.SampleRate, pattern []time.Duration) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(pattern))
	for i, d := range pattern {
		n := sr.N(d)
		if i%2 == 0 {
			parts = append(parts, beep.Take(n, tone(sr, toneHz)))
		} else {
			parts = append(parts, beep.Silence(n))
		}
	}
	return beep.Seq(parts...)
}

func tone(sr beep.SampleRate, hz float64) beep.Streamer {
	step := 2 * math.Pi * hz / float64(sr)
	var phase float64
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := toneVolume * math.Sin(phase)
			samples[i] = [2]float64{v, v}
			phase += step
		}
		return len(samples), true
	})
}
