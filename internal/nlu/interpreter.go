// Package nlu turns finalized transcripts into structured intents through a
// remote language-understanding service.
package nlu

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	MsgConnectionTrouble = "I'm having trouble connecting. Please try again later."
	MsgNotUnderstood     = "Sorry, I couldn't understand that. Please try again."
)

// ErrBusy is returned when a request is already outstanding.
var ErrBusy = errors.New("nlu: request already in flight")

type Options struct {
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

type Interpreter struct {
	client Client
	opts   Options
	sem    *semaphore.Weighted
	busy   atomic.Bool
}

func NewInterpreter(client Client, optFns ...func(o *Options)) *Interpreter {
	opts := Options{
		Timeout: 20 * time.Second,
		Now:     time.Now,
		Logger:  slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Interpreter{
		client: client,
		opts:   opts,
		sem:    semaphore.NewWeighted(1),
	}
}

// Busy reports whether a request is outstanding.
func (i *Interpreter) Busy() bool {
	return i.busy.Load()
}

// Interpret always yields at least one intent. Service failures degrade to a
// single Speak carrying an apology; the only error is ErrBusy.
func (i *Interpreter) Interpret(ctx context.Context, transcript string) ([]Intent, error) {
	if !i.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer i.sem.Release(1)
	i.busy.Store(true)
	defer i.busy.Store(false)

	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	req := Request{
		Transcript:  transcript,
		ContextDate: ContextDate(i.opts.Now()),
	}

	start := time.Now()
	resp, err := i.client.Understand(ctx, req)
	if err != nil {
		i.opts.Logger.Error("Understanding request failed", "err", err, "took", time.Since(start))
		return []Intent{Speak{Message: MsgConnectionTrouble}}, nil
	}
	i.opts.Logger.Debug("Understood", "calls", len(resp.Calls), "text", resp.Text, "took", time.Since(start))

	if len(resp.Calls) > 0 {
		out := make([]Intent, 0, len(resp.Calls))
		for _, c := range resp.Calls {
			out = append(out, FromCall(c))
		}
		return out, nil
	}

	if resp.Text != "" {
		return []Intent{Speak{Message: resp.Text}}, nil
	}

	return []Intent{Speak{Message: MsgNotUnderstood}}, nil
}
