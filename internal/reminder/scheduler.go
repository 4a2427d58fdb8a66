// Package reminder fires medication and appointment reminders at minute
// granularity. Each entity fires at most once per local calendar day.
package reminder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"carevox/internal/store"
)

const (
	DefaultTickInterval = 30 * time.Second
	DefaultLeadTime     = 15 * time.Minute

	TitleMedication  = "Medication Reminder"
	TitleAppointment = "Appointment Reminder"
)

type Kind string

const (
	KindMedication  Kind = "med"
	KindAppointment Kind = "appt"
)

// Key identifies an entity that already fired today.
type Key struct {
	Kind Kind
	ID   string
}

// Tag is the notification tag, e.g. "med-42".
func (k Key) Tag() string {
	return string(k.Kind) + "-" + k.ID
}

type Snapshotter interface {
	Get() store.Data
	Location() *time.Location
}

type Notifier interface {
	Notify(title, body, tag string) error
}

type Speaker interface {
	Speak(text string)
}

type Config struct {
	TickInterval time.Duration
	LeadTime     time.Duration
}

type Scheduler struct {
	store    Snapshotter
	notifier Notifier
	speaker  Speaker
	cfg      Config
	log      *slog.Logger

	mu    sync.Mutex
	day   string
	fired map[Key]struct{}

	cron *cron.Cron
}

func New(st Snapshotter, notifier Notifier, speaker Speaker, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = DefaultLeadTime
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    st,
		notifier: notifier,
		speaker:  speaker,
		cfg:      cfg,
		log:      logger,
		fired:    make(map[Key]struct{}),
	}
}

// Start runs Tick every TickInterval until Stop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log})))
	c.Schedule(cron.Every(s.cfg.TickInterval), cron.FuncJob(func() {
		s.Tick(time.Now())
	}))
	c.Start()
	s.cron = c

	s.log.Info("Reminder scheduler started", "tick", s.cfg.TickInterval, "lead", s.cfg.LeadTime)
}

// Stop cancels future ticks and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("Reminder scheduler stopped")
}

// Tick evaluates every medication and appointment against now. Reminders
// for instants skipped between ticks are not fired retroactively.
func (s *Scheduler) Tick(now time.Time) {
	loc := s.store.Location()
	now = now.In(loc)
	today := now.Format(store.DateLayout)
	minute := now.Format(store.TimeLayout)

	data := s.store.Get()

	s.mu.Lock()
	defer s.mu.Unlock()

	if today != s.day {
		if s.day != "" {
			s.log.Debug("Day changed, resetting reminders", "from", s.day, "to", today)
		}
		s.day = today
		clear(s.fired)
	}

	for _, m := range data.Medications {
		if m.Taken || m.Time != minute {
			continue
		}
		key := Key{Kind: KindMedication, ID: m.ID}
		body := fmt.Sprintf("It's time to take your %s (%s).", m.Name, m.Dosage)
		s.fire(key, TitleMedication, body)
	}

	leadMinutes := int(s.cfg.LeadTime / time.Minute)
	for _, a := range data.Appointments {
		at, err := a.Instant(loc)
		if err != nil {
			s.log.Warn("Skipping appointment with bad date", "id", a.ID, "date", a.Date, "time", a.Time, "err", err)
			continue
		}
		due := at.Add(-s.cfg.LeadTime)
		if due.Format(store.DateLayout) != today || due.Format(store.TimeLayout) != minute {
			continue
		}
		key := Key{Kind: KindAppointment, ID: a.ID}
		body := fmt.Sprintf("Your appointment \"%s\" is in %d minutes at %s.", a.Title, leadMinutes, a.Time)
		s.fire(key, TitleAppointment, body)
	}
}

// Fired reports whether key already fired today.
func (s *Scheduler) Fired(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[key]
	return ok
}

func (s *Scheduler) fire(key Key, title, body string) {
	if _, ok := s.fired[key]; ok {
		return
	}
	s.fired[key] = struct{}{}

	s.log.Info("Firing reminder", "tag", key.Tag(), "body", body)
	if s.notifier != nil {
		if err := s.notifier.Notify(title, body, key.Tag()); err != nil {
			s.log.Warn("Notification failed", "tag", key.Tag(), "err", err)
		}
	}
	if s.speaker != nil {
		s.speaker.Speak(body)
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
