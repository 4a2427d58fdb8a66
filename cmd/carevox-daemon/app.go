package main

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"carevox/internal/dispatch"
	"carevox/internal/ipc"
	"carevox/internal/nlu"
	"carevox/internal/speech"
	"carevox/internal/store"
)

// event is one unit of work for the loop: a transcript to interpret, or
// intents that skip interpretation.
type event struct {
	text    string
	intents []nlu.Intent
	reply   chan result
}

type result struct {
	msgs []string
	err  error
}

type haptic interface {
	Pulse(pattern ...time.Duration)
	Cue() error
}

type app struct {
	store   *store.Store
	interp  *nlu.Interpreter
	disp    *dispatch.Dispatcher
	session *speech.Session
	haptic  haptic

	events chan event
	done   chan struct{}
}

func newApp(st *store.Store, interp *nlu.Interpreter, disp *dispatch.Dispatcher) *app {
	return &app{
		store:  st,
		interp: interp,
		disp:   disp,
		events: make(chan event, 8),
		done:   make(chan struct{}),
	}
}

// loop handles events one at a time so batches never interleave.
func (a *app) loop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			res := a.handle(ctx, ev)
			if ev.reply != nil {
				ev.reply <- res
			}
		}
	}
}

func (a *app) handle(ctx context.Context, ev event) result {
	intents := ev.intents
	if ev.text != "" {
		log.Info("Interpreting", "text", ev.text)
		var err error
		intents, err = a.interp.Interpret(ctx, ev.text)
		if err != nil {
			return result{err: err}
		}
	}
	return result{msgs: a.disp.Dispatch(intents)}
}

// submit queues ev without waiting for the outcome. It blocks while the
// queue is full and gives up only once the loop has exited.
func (a *app) submit(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
		log.Warn("Event loop stopped, dropping", "text", ev.text)
	}
}

func (a *app) run(ctx context.Context, ev event) ([]string, error) {
	ev.reply = make(chan result, 1)
	select {
	case a.events <- ev:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-ev.reply:
		return res.msgs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Command interprets and dispatches text, returning the announcements.
func (a *app) Command(ctx context.Context, text string) ([]string, error) {
	return a.run(ctx, event{text: text})
}

// onTranscript ends the capture and hands the text to the loop.
func (a *app) onTranscript(text string) {
	if a.session != nil {
		a.session.Stop()
	}
	a.submit(event{text: text})
}

func (a *app) Toggle() {
	if a.session == nil {
		return
	}
	if a.haptic != nil {
		a.haptic.Pulse()
		if !a.session.Listening() {
			if err := a.haptic.Cue(); err != nil {
				log.Warn("Failed to play cue", "err", err)
			}
		}
	}
	a.session.Toggle()
	if err := a.session.Err(); err != nil {
		log.Warn("Listening failed", "err", err)
	}
}

func (a *app) Listening() bool {
	return a.session != nil && a.session.Listening()
}

func (a *app) control(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case ipc.CmdListen:
		if a.session == nil {
			return ipc.Reply{Error: "no speech input configured"}
		}
		a.Toggle()
		if err := a.session.Err(); err != nil {
			return ipc.Reply{Error: err.Error()}
		}
		return ipc.Reply{OK: true, Lines: []string{a.state()}}

	case ipc.CmdStop:
		if a.session != nil {
			a.session.Stop()
		}
		return ipc.Reply{OK: true}

	case ipc.CmdSay:
		if strings.TrimSpace(msg.Text) == "" {
			return ipc.Reply{Error: "nothing to say"}
		}
		msgs, err := a.Command(ctx, msg.Text)
		if err != nil {
			return ipc.Reply{Error: err.Error()}
		}
		return ipc.Reply{OK: true, Lines: msgs}

	case ipc.CmdSummary:
		msgs, err := a.run(ctx, event{intents: []nlu.Intent{nlu.GetDailySummary{}}})
		if err != nil {
			return ipc.Reply{Error: err.Error()}
		}
		return ipc.Reply{OK: true, Lines: msgs}

	case ipc.CmdStatus:
		return ipc.Reply{OK: true, Lines: a.status()}

	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
	}
}

func (a *app) state() string {
	if a.Listening() {
		return "listening"
	}
	return "idle"
}

func (a *app) status() []string {
	data := a.store.Get()
	untaken := 0
	for _, m := range data.Medications {
		if !m.Taken {
			untaken++
		}
	}
	return []string{
		"state: " + a.state(),
		"view: " + strings.ToLower(string(a.disp.View())),
		fmt.Sprintf("medications: %d (%d untaken)", len(data.Medications), untaken),
		fmt.Sprintf("appointments: %d", len(data.Appointments)),
		fmt.Sprintf("activities: %d", len(data.Activities)),
	}
}
