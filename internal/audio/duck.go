package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id       int
	from, to int
}

// Pactl runs one pactl invocation and returns its stdout.
type Pactl func(ctx context.Context, args ...string) ([]byte, error)

func runPactl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "pactl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pactl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

type DuckerOptions struct {
	// Self lists application names whose streams are left alone.
	Self []string
	// Factor scales the other streams while ducked, e.g. 0.3.
	Factor float64
	// Floor is the lowest volume percent a ducked stream is taken to.
	Floor int
	Fade  time.Duration
	Pactl Pactl
}

// Ducker fades other PulseAudio/PipeWire sink inputs down while the
// microphone is open and back up afterwards.
type Ducker struct {
	opt DuckerOptions

	mu       sync.Mutex
	ducked   bool
	original map[int]int
}

func NewDucker(opt DuckerOptions) *Ducker {
	if opt.Factor <= 0 || opt.Factor > 1 {
		opt.Factor = 0.3
	}
	opt.Floor = min(max(opt.Floor, 0), maxVolume)
	if opt.Pactl == nil {
		opt.Pactl = runPactl
	}
	return &Ducker{opt: opt, original: make(map[int]int)}
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ducked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	clear(d.original)
	var fades []fade
	for _, in := range inputs {
		to := int(math.Round(float64(in.Volume) * d.opt.Factor))
		to = min(max(to, d.opt.Floor), maxVolume)
		d.original[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: to})
	}

	d.ducked = true
	return d.fade(ctx, fades)
}

// Restore brings ducked streams back to the volume they had before Duck.
// Streams that appeared in the meantime are not touched.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ducked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		if orig, ok := d.original[in.ID]; ok {
			fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
		}
	}

	d.ducked = false
	clear(d.original)
	return d.fade(ctx, fades)
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.opt.Pactl(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	var res []sinkInput
	for _, in := range parseSinkInputs(string(out)) {
		if !slices.Contains(d.opt.Self, in.AppName) {
			res = append(res, in)
		}
	}
	return res, nil
}

func (d *Ducker) fade(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond
	steps := max(int(d.opt.Fade/minStep), 1)
	stepDur := d.opt.Fade / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := f.from + int(math.Round(float64(f.to-f.from)*frac))
			if err := d.setVolume(ctx, f.id, v); err != nil {
				return err
			}
		}
		if i < steps {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepDur):
			}
		}
	}
	return nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = min(max(percent, 0), maxVolume)
	_, err := d.opt.Pactl(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	if err != nil {
		return fmt.Errorf("set volume of sink input %d: %w", id, err)
	}
	return nil
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []sinkInput {
	var res []sinkInput
	for _, block := range strings.Split(text, "Sink Input #")[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && in.Volume == 0:
				if m := percentRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && in.AppName == "":
				_, v, _ := strings.Cut(line, "=")
				in.AppName = strings.Trim(strings.TrimSpace(v), `"`)
			}
		}
		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}
