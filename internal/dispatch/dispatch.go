// Package dispatch applies interpreted intents to the domain store and turns
// each one into an announcement for the spoken and visual sinks.
package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"carevox/internal/nlu"
	"carevox/internal/store"
)

const (
	msgMedicationIncomplete  = "I'm sorry, I didn't get all the details for the medication. Please try again."
	msgAppointmentIncomplete = "I'm sorry, I didn't get all the details for the appointment. Please try again."
	msgUnrecognized          = "Sorry, I'm not sure how to do that."
)

type Store interface {
	Get() store.Data
	Update(fn func(store.Data) store.Data) error
	Location() *time.Location
}

type Speaker interface {
	Speak(text string)
}

type Announcer interface {
	Announce(text string)
}

type Navigator interface {
	Navigate(view nlu.View)
}

type Options struct {
	Speaker   Speaker
	Announcer Announcer
	Navigator Navigator
	Now       func() time.Time
	Logger    *slog.Logger
}

type Dispatcher struct {
	store Store
	opts  Options

	mu   sync.Mutex
	view nlu.View
}

func New(st Store, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		store: st,
		opts:  opts,
		view:  nlu.ViewDashboard,
	}
}

// View is the currently active view.
func (d *Dispatcher) View() nlu.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Dispatch applies intents one at a time in order and returns the
// announcement each produced. Concurrent batches are serialized.
func (d *Dispatcher) Dispatch(intents []nlu.Intent) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(intents))
	for _, in := range intents {
		d.opts.Logger.Info("Executing intent", "kind", in.Kind(), "intent", fmt.Sprintf("%+v", in))

		msg := d.apply(in)
		if msg == "" {
			continue
		}
		if d.opts.Speaker != nil {
			d.opts.Speaker.Speak(msg)
		}
		if d.opts.Announcer != nil {
			d.opts.Announcer.Announce(msg)
		}
		out = append(out, msg)
	}
	return out
}

func (d *Dispatcher) apply(in nlu.Intent) string {
	switch in := in.(type) {
	case nlu.Navigate:
		return d.navigate(in)
	case nlu.AddMedication:
		return d.addMedication(in)
	case nlu.MarkMedicationTaken:
		return d.markTaken(in)
	case nlu.AddAppointment:
		return d.addAppointment(in)
	case nlu.GetDailySummary:
		return Summary(d.store.Get(), d.opts.Now().In(d.store.Location()))
	case nlu.Speak:
		return in.Message
	default:
		return msgUnrecognized
	}
}

func (d *Dispatcher) navigate(in nlu.Navigate) string {
	view, ok := nlu.ParseView(in.View)
	if !ok {
		return fmt.Sprintf("Sorry, I can't navigate to %s.", in.View)
	}
	d.view = view
	if d.opts.Navigator != nil {
		d.opts.Navigator.Navigate(view)
	}
	return fmt.Sprintf("Navigating to %s.", strings.ToLower(string(view)))
}

func (d *Dispatcher) addMedication(in nlu.AddMedication) string {
	clock, ok := normalizeClock(in.Time)
	if in.Name == "" || in.Dosage == "" || !ok {
		return msgMedicationIncomplete
	}

	med := store.Medication{
		ID:     store.NewID(),
		Name:   in.Name,
		Dosage: in.Dosage,
		Time:   clock,
	}
	d.update(func(data store.Data) store.Data {
		data.Medications = append(data.Medications, med)
		return data
	})

	return fmt.Sprintf("Okay, I've added %s to your schedule at %s.", in.Name, clock)
}

// markTaken flips only the first untaken medication whose name matches.
func (d *Dispatcher) markTaken(in nlu.MarkMedicationTaken) string {
	want := strings.ToLower(in.Name)
	found := false

	d.update(func(data store.Data) store.Data {
		for i, m := range data.Medications {
			if !m.Taken && strings.ToLower(m.Name) == want {
				data.Medications[i].Taken = true
				found = true
				break
			}
		}
		return data
	})

	if !found {
		return fmt.Sprintf("I couldn't find an untaken medication named %s.", in.Name)
	}
	return fmt.Sprintf("Okay, I've marked %s as taken.", in.Name)
}

func (d *Dispatcher) addAppointment(in nlu.AddAppointment) string {
	date, dateOK := normalizeDate(in.Date)
	clock, clockOK := normalizeClock(in.Time)
	if in.Title == "" || !dateOK || !clockOK {
		return msgAppointmentIncomplete
	}

	appt := store.Appointment{
		ID:       store.NewID(),
		Title:    in.Title,
		Date:     date,
		Time:     clock,
		Location: in.Location,
	}
	d.update(func(data store.Data) store.Data {
		data.Appointments = append(data.Appointments, appt)
		return data
	})

	return fmt.Sprintf("Okay, I've scheduled %s for %s at %s.", in.Title, date, clock)
}

// normalizeClock accepts "8:00" as well as "08:00" and returns the stored
// zero-padded form.
func normalizeClock(s string) (string, bool) {
	t, err := time.Parse(store.TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(store.TimeLayout), true
}

func normalizeDate(s string) (string, bool) {
	t, err := time.Parse("2006-1-2", strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(store.DateLayout), true
}

func (d *Dispatcher) update(fn func(store.Data) store.Data) {
	if err := d.store.Update(fn); err != nil {
		d.opts.Logger.Error("Failed to save data", "err", err)
	}
}
