// Package notify holds the best-effort output sinks that are not speech:
// desktop notifications and short audible pulses.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const AppName = "carevox"

// ErrUnavailable is returned while no notification tool is installed.
var ErrUnavailable = errors.New("notifications unavailable")

// Runner executes a command; swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

type NotifierOptions struct {
	// Enabled false turns Notify into a no-op.
	Enabled bool
	// Command defaults to notify-send.
	Command string
	Timeout time.Duration
	Runner  Runner
	Logger  *slog.Logger
}

// Notifier posts desktop notifications with notify-send. Notifications sharing
// a tag replace each other on servers that honor the stack hints.
type Notifier struct {
	opt NotifierOptions

	once      sync.Once
	available bool
	wg        sync.WaitGroup
}

func NewNotifier(opt NotifierOptions) *Notifier {
	if opt.Command == "" {
		opt.Command = "notify-send"
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 5 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	n := &Notifier{opt: opt}
	if opt.Runner == nil {
		n.opt.Runner = runCommand
	} else {
		n.once.Do(func() { n.available = true })
	}
	return n
}

// Notify posts in the background and returns once the command has been
// started. Only a disabled or missing tool is reported; command failures are
// logged.
func (n *Notifier) Notify(title, body, tag string) error {
	if !n.opt.Enabled {
		return nil
	}

	n.once.Do(func() {
		_, err := exec.LookPath(n.opt.Command)
		n.available = err == nil
		if !n.available {
			n.opt.Logger.Warn("Notification tool not found, reminders will only be spoken", "cmd", n.opt.Command)
		}
	})
	if !n.available {
		return ErrUnavailable
	}

	args := []string{
		"--app-name=" + AppName,
		"--urgency=critical",
		"--hint=string:x-dunst-stack-tag:" + tag,
		"--hint=string:x-canonical-private-synchronous:" + tag,
		title,
		body,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.opt.Timeout)
		defer cancel()
		if err := n.opt.Runner(ctx, n.opt.Command, args...); err != nil {
			n.opt.Logger.Warn("Notification failed", "tag", tag, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every posted notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
