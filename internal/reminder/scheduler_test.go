package reminder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carevox/internal/store"
)

type fakeStore struct {
	data store.Data
}

func (f *fakeStore) Get() store.Data { return f.data.Clone() }
func (f *fakeStore) Location() *time.Location { return time.UTC }

type notification struct {
	title, body, tag string
}

type fakeSinks struct {
	mu       sync.Mutex
	notified []notification
	spoken   []string
	err      error
}

func (f *fakeSinks) Notify(title, body, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, notification{title, body, tag})
	return f.err
}

func (f *fakeSinks) Speak(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
}

func (f *fakeSinks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notified)
}

func at(day, hour, minute, sec int) time.Time {
	return time.Date(2026, 10, day, hour, minute, sec, 0, time.UTC)
}

func TestMedicationFiresOncePerDay(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Medications: []store.Medication{{ID: "m1", Name: "Aspirin", Dosage: "100mg", Time: "08:00"}},
	}}
	sinks := &fakeSinks{}
	s := New(st, sinks, sinks, Config{}, nil)

	s.Tick(at(16, 7, 59, 40))
	assert.Empty(t, sinks.notified)

	s.Tick(at(16, 8, 0, 10))
	s.Tick(at(16, 8, 0, 40))
	s.Tick(at(16, 12, 0, 0))
	require.Len(t, sinks.notified, 1)
	assert.Equal(t, notification{
		title: "Medication Reminder",
		body:  "It's time to take your Aspirin (100mg).",
		tag:   "med-m1",
	}, sinks.notified[0])
	assert.Equal(t, []string{"It's time to take your Aspirin (100mg)."}, sinks.spoken)
	assert.True(t, s.Fired(Key{Kind: KindMedication, ID: "m1"}))

	s.Tick(at(17, 8, 0, 5))
	assert.Len(t, sinks.notified, 2)
}

func TestTakenMedicationIsSilent(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Medications: []store.Medication{{ID: "m1", Name: "Aspirin", Dosage: "1", Time: "08:00", Taken: true}},
	}}
	sinks := &fakeSinks{}
	s := New(st, sinks, sinks, Config{}, nil)

	s.Tick(at(16, 8, 0, 0))
	assert.Empty(t, sinks.notified)
	assert.Empty(t, sinks.spoken)
}

func TestAppointmentFiresLeadTimeEarly(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Appointments: []store.Appointment{
			{ID: "bad", Title: "Broken", Date: "someday", Time: "10:15"},
			{ID: "a1", Title: "Dentist", Date: "2026-10-16", Time: "10:15"},
		},
	}}
	sinks := &fakeSinks{}
	s := New(st, sinks, sinks, Config{}, nil)

	s.Tick(at(16, 9, 59, 30))
	assert.Empty(t, sinks.notified)

	s.Tick(at(16, 10, 0, 0))
	s.Tick(at(16, 10, 0, 30))
	require.Len(t, sinks.notified, 1)
	assert.Equal(t, notification{
		title: "Appointment Reminder",
		body:  `Your appointment "Dentist" is in 15 minutes at 10:15.`,
		tag:   "appt-a1",
	}, sinks.notified[0])
}

func TestAppointmentLeadCrossesMidnight(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Appointments: []store.Appointment{{ID: "a1", Title: "Early", Date: "2026-10-17", Time: "00:10"}},
	}}
	sinks := &fakeSinks{}
	s := New(st, sinks, sinks, Config{LeadTime: 30 * time.Minute}, nil)

	s.Tick(at(16, 23, 40, 0))
	require.Len(t, sinks.notified, 1)
	assert.Equal(t, `Your appointment "Early" is in 30 minutes at 00:10.`, sinks.notified[0].body)
}

func TestSinkFailureStillDedups(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Medications: []store.Medication{{ID: "m1", Name: "Aspirin", Dosage: "1", Time: "08:00"}},
	}}
	sinks := &fakeSinks{err: errors.New("no notification daemon")}
	s := New(st, sinks, sinks, Config{}, nil)

	s.Tick(at(16, 8, 0, 0))
	s.Tick(at(16, 8, 0, 30))
	assert.Len(t, sinks.notified, 1)
	assert.Len(t, sinks.spoken, 1)
}

func TestNilSinks(t *testing.T) {
	st := &fakeStore{data: store.Data{
		Medications: []store.Medication{{ID: "m1", Name: "Aspirin", Dosage: "1", Time: "08:00"}},
	}}
	s := New(st, nil, nil, Config{}, nil)

	assert.NotPanics(t, func() { s.Tick(at(16, 8, 0, 0)) })
	assert.True(t, s.Fired(Key{Kind: KindMedication, ID: "m1"}))
}

func TestStartStop(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeStore{data: store.Data{
		Medications: []store.Medication{{ID: "m1", Name: "Aspirin", Dosage: "1", Time: now.Format(store.TimeLayout)}},
	}}
	sinks := &fakeSinks{}
	s := New(st, sinks, sinks, Config{TickInterval: time.Second}, nil)

	s.Start()
	s.Start()
	defer s.Stop()

	// The minute may roll over before the first tick; only check that ticks run.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.day != ""
	}, 5*time.Second, 50*time.Millisecond)

	s.Stop()
	n := sinks.count()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, n, sinks.count())
}

func TestKeyTag(t *testing.T) {
	assert.Equal(t, "med-1", Key{Kind: KindMedication, ID: "1"}.Tag())
	assert.Equal(t, "appt-x", Key{Kind: KindAppointment, ID: "x"}.Tag())
}
