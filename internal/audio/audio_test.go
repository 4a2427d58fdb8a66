package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carevox/internal/speech"
)

const pactlList = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: mono: 32768 /  50% / -18.06 dB
	Properties:
		application.name = "carevox"
Sink Input #bogus
	Volume: mono: 100%
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(pactlList)
	assert.Equal(t, []sinkInput{
		{ID: 41, Volume: 100, AppName: "Firefox"},
		{ID: 42, Volume: 50, AppName: "carevox"},
	}, got)
	assert.Empty(t, parseSinkInputs(""))
}

type fakePactl struct {
	mu    sync.Mutex
	list  string
	calls []string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(args, " "))
	if args[0] == "list" {
		return []byte(f.list), nil
	}
	return nil, nil
}

func TestDuckerSkipsSelfAndRestores(t *testing.T) {
	p := &fakePactl{list: pactlList}
	d := NewDucker(DuckerOptions{Self: []string{"carevox"}, Factor: 0.3, Floor: 10, Pactl: p.run})

	require.NoError(t, d.Duck(context.Background()))
	require.NoError(t, d.Duck(context.Background()))
	assert.Equal(t, []string{"list sink-inputs", "set-sink-input-volume 41 30%"}, p.calls)

	p.calls = nil
	p.list = strings.Replace(pactlList, "100%", "30%", 1)
	require.NoError(t, d.Restore(context.Background()))
	assert.Equal(t, []string{"list sink-inputs", "set-sink-input-volume 41 100%"}, p.calls)

	p.calls = nil
	require.NoError(t, d.Restore(context.Background()))
	assert.Empty(t, p.calls)
}

func TestDuckerListError(t *testing.T) {
	d := NewDucker(DuckerOptions{Pactl: func(context.Context, ...string) ([]byte, error) {
		return nil, errors.New("pactl missing")
	}})
	assert.Error(t, d.Duck(context.Background()))
}

type frames struct {
	buf   []float32
	level []float32
	reads int
}

func (f *frames) Read() error {
	v := float32(0)
	if f.reads < len(f.level) {
		v = f.level[f.reads]
	}
	for i := range f.buf {
		f.buf[i] = v
	}
	f.reads++
	return nil
}

func TestRecordStopsOnTrailingSilence(t *testing.T) {
	buf := make([]float32, frameSize)
	src := &frames{buf: buf, level: []float32{0, 0.5, 0.5}}

	out, err := record(src, buf, nil, 10*time.Second, 100*time.Millisecond)
	require.NoError(t, err)
	// 3 frames of lead-in and speech plus 5 silent frames of 20ms.
	assert.Equal(t, 8, src.reads)
	assert.Len(t, out, 8*frameSize)
}

func TestRecordHonorsMaxDurationAndStop(t *testing.T) {
	buf := make([]float32, frameSize)
	src := &frames{buf: buf}
	out, err := record(src, buf, nil, 200*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, src.reads)
	assert.Len(t, out, 10*frameSize)

	stop := make(chan struct{})
	close(stop)
	src = &frames{buf: buf}
	out, err = record(src, buf, stop, time.Second, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, src.reads)
}

func TestDownmixAndResample(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, downmix([]float32{1, 0, 0.5, -0.5}, 2))
	assert.Equal(t, []float32{1, 2}, downmix([]float32{1, 2}, 1))

	up := resample([]float32{0, 1}, 8000, 16000)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, up)
	assert.Len(t, resample(make([]float32, 48), 32000, 16000), 24)
	assert.InDelta(t, 0.5, rms([]float32{0.5, -0.5}), 1e-9)
}

func writeWAV(t *testing.T, dir string, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(dir, "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestDecodeWAV(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 32000, 2, []int{16384, 16384, 0, 0, -16384, -16384, 0, 0})

	pcm, err := DecodeFile(path, 0)
	require.NoError(t, err)
	require.Len(t, pcm, 2)
	assert.InDelta(t, 0.5, pcm[0], 1e-6)
	assert.InDelta(t, -0.5, pcm[1], 1e-6)

	pcm, err = DecodeFile(path, 1)
	require.NoError(t, err)
	assert.Len(t, pcm, 1)
}

func TestDecodeUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	_, err := DecodeFile(path, 0)
	assert.ErrorContains(t, err, "unsupported")
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []float32) (string, error) {
	return f.text, f.err
}

func TestFileEngine(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 16000, 1, []int{100, 200, 300})

	got := make(chan string, 1)
	s := speech.NewSession(NewFileEngine(path, fakeTranscriber{text: " Show my medications"}, nil), speech.Options{
		OnTranscript: func(text string) { got <- text },
	})
	s.Start()

	select {
	case text := <-got:
		assert.Equal(t, "show my medications", text)
	case <-time.After(5 * time.Second):
		t.Fatal("no transcript")
	}
	require.Eventually(t, func() bool { return !s.Listening() }, 5*time.Second, 10*time.Millisecond)
}

func TestFileEngineMissingFile(t *testing.T) {
	e := NewFileEngine(filepath.Join(t.TempDir(), "missing.wav"), fakeTranscriber{}, nil)
	assert.Error(t, e.Start())
}

func TestFileEngineTranscribeError(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 16000, 1, []int{1, 2, 3})

	s := speech.NewSession(NewFileEngine(path, fakeTranscriber{err: errors.New("model crashed")}, nil), speech.Options{})
	s.Start()

	require.Eventually(t, func() bool { return !s.Listening() }, 5*time.Second, 10*time.Millisecond)
	assert.ErrorContains(t, s.Err(), "model crashed")
}
