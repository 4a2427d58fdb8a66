package tts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEngine struct {
	calls  []string
	sayErr error
}

func (f *fakeEngine) Say(text string) error {
	f.calls = append(f.calls, "say:"+text)
	return f.sayErr
}

func (f *fakeEngine) Cancel() error {
	f.calls = append(f.calls, "cancel")
	return nil
}

func TestSpeakCancelsFirst(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng, nil)

	s.Speak("one")
	s.Speak("two")
	s.Speak("")

	assert.Equal(t, []string{"cancel", "say:one", "cancel", "say:two"}, eng.calls)
}

func TestSpeakErrorsAreSwallowed(t *testing.T) {
	eng := &fakeEngine{sayErr: errors.New("no audio device")}
	s := NewSpeaker(eng, nil)

	assert.NotPanics(t, func() { s.Speak("hello") })
}

func TestNilSpeaker(t *testing.T) {
	var s *Speaker
	assert.NotPanics(t, func() { s.Speak("hello") })
	assert.NotPanics(t, func() { NewSpeaker(nil, nil).Speak("hello") })
}
