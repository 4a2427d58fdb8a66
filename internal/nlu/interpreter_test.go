package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	resp  Response
	err   error
	block chan struct{}
	reqs  []Request
}

func (f *fakeClient) Understand(ctx context.Context, req Request) (Response, error) {
	f.reqs = append(f.reqs, req)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
}

func newTestInterpreter(c Client) *Interpreter {
	return NewInterpreter(c, func(o *Options) {
		o.Now = fixedNow
		o.Timeout = time.Second
	})
}

func TestInterpretMapsCallsInOrder(t *testing.T) {
	c := &fakeClient{resp: Response{Calls: []Call{
		{Name: "addMedication", Args: map[string]any{"name": "A", "dosage": "1", "time": "08:00"}},
		{Name: "getDailySummary"},
		{Name: "unknownThing"},
	}}}

	intents, err := newTestInterpreter(c).Interpret(context.Background(), "add a and tell me my day")
	require.NoError(t, err)

	require.Len(t, intents, 3)
	assert.Equal(t, KindAddMedication, intents[0].Kind())
	assert.Equal(t, KindGetDailySummary, intents[1].Kind())
	assert.Equal(t, Unrecognized{Name: "unknownThing"}, intents[2])

	require.Len(t, c.reqs, 1)
	assert.Equal(t, "Fri Oct 16 2026", c.reqs[0].ContextDate)
	assert.Equal(t, "add a and tell me my day", c.reqs[0].Transcript)
}

func TestInterpretTextBecomesSpeak(t *testing.T) {
	c := &fakeClient{resp: Response{Text: "Hello there"}}

	intents, err := newTestInterpreter(c).Interpret(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []Intent{Speak{Message: "Hello there"}}, intents)
}

func TestInterpretEmptyResponse(t *testing.T) {
	intents, err := newTestInterpreter(&fakeClient{}).Interpret(context.Background(), "mumble")
	require.NoError(t, err)
	assert.Equal(t, []Intent{Speak{Message: MsgNotUnderstood}}, intents)
}

func TestInterpretServiceError(t *testing.T) {
	c := &fakeClient{err: errors.New("503")}

	intents, err := newTestInterpreter(c).Interpret(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []Intent{Speak{Message: MsgConnectionTrouble}}, intents)
}

func TestInterpretTimeout(t *testing.T) {
	c := &fakeClient{block: make(chan struct{})}
	in := NewInterpreter(c, func(o *Options) {
		o.Now = fixedNow
		o.Timeout = 10 * time.Millisecond
	})

	intents, err := in.Interpret(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []Intent{Speak{Message: MsgConnectionTrouble}}, intents)
	assert.False(t, in.Busy())
}

func TestInterpretSingleFlight(t *testing.T) {
	c := &fakeClient{block: make(chan struct{}), resp: Response{Text: "done"}}
	in := newTestInterpreter(c)

	done := make(chan []Intent)
	go func() {
		intents, _ := in.Interpret(context.Background(), "first")
		done <- intents
	}()

	require.Eventually(t, in.Busy, time.Second, time.Millisecond)

	_, err := in.Interpret(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(c.block)
	assert.Equal(t, []Intent{Speak{Message: "done"}}, <-done)
	assert.False(t, in.Busy())
}
