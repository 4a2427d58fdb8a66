// Package espeak speaks through libespeak-ng.
package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_open(const char *voice)
{
	if (espeak_Initialize(AUDIO_OUTPUT_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs = { 0 };
	specs.languages = voice;
	if (espeak_SetVoiceByProperties(&specs) != EE_OK)
	{ return -2; }

	return 0;
}

static int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	size_t len = 0;
	while (text[len]) len++;

	return espeak_Synth(text, len + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Engine drives libespeak-ng in asynchronous playback mode.
type Engine struct {
	mu sync.Mutex
}

var (
	openOnce sync.Once
	openRC   C.int
)

// New initializes the library with the given voice, e.g. "en".
func New(voice string) (*Engine, error) {
	openOnce.Do(func() {
		cvoice := C.CString(voice)
		defer C.free(unsafe.Pointer(cvoice))
		openRC = C.espeak_open(cvoice)
	})
	if openRC != 0 {
		return nil, fmt.Errorf("espeak init failed: %d", int(openRC))
	}
	return &Engine{}, nil
}

func (e *Engine) Say(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	if rc := C.espeak_say(ctext); rc != 0 {
		return fmt.Errorf("espeak synth failed: %d", int(rc))
	}
	return nil
}

func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rc := C.espeak_Cancel(); int(rc) != 0 {
		return fmt.Errorf("espeak cancel failed: %d", int(rc))
	}
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	C.espeak_Synchronize()
	C.espeak_Terminate()
	return nil
}
