package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("store: record not found")
	ErrInvalid  = errors.New("store: invalid record")
)

func invalid(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, field)
}

func validClock(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil && len(s) == len(TimeLayout)
}

func NewID() string {
	return uuid.NewString()
}

// AddMedication validates m, assigns an ID and inserts it untaken.
func (s *Store) AddMedication(m Medication) (Medication, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Dosage = strings.TrimSpace(m.Dosage)
	switch {
	case m.Name == "":
		return Medication{}, invalid("name")
	case m.Dosage == "":
		return Medication{}, invalid("dosage")
	case !validClock(m.Time):
		return Medication{}, invalid("time")
	}
	m.ID = NewID()
	m.Taken = false

	err := s.Update(func(d Data) Data {
		d.Medications = append(d.Medications, m)
		return d
	})
	return m, err
}

func (s *Store) SetMedicationTaken(id string, taken bool) error {
	return s.mutate(func(d *Data) bool {
		i := slices.IndexFunc(d.Medications, func(m Medication) bool { return m.ID == id })
		if i < 0 {
			return false
		}
		d.Medications[i].Taken = taken
		return true
	})
}

func (s *Store) DeleteMedication(id string) error {
	return s.mutate(func(d *Data) bool {
		n := len(d.Medications)
		d.Medications = slices.DeleteFunc(d.Medications, func(m Medication) bool { return m.ID == id })
		return len(d.Medications) != n
	})
}

func (s *Store) AddAppointment(a Appointment) (Appointment, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return Appointment{}, invalid("title")
	}
	if _, err := a.Instant(s.loc); err != nil {
		return Appointment{}, invalid("date/time")
	}
	a.ID = NewID()

	err := s.Update(func(d Data) Data {
		d.Appointments = append(d.Appointments, a)
		return d
	})
	return a, err
}

func (s *Store) DeleteAppointment(id string) error {
	return s.mutate(func(d *Data) bool {
		n := len(d.Appointments)
		d.Appointments = slices.DeleteFunc(d.Appointments, func(a Appointment) bool { return a.ID == id })
		return len(d.Appointments) != n
	})
}

func (s *Store) AddActivity(a Activity) (Activity, error) {
	a.Title = strings.TrimSpace(a.Title)
	switch {
	case a.Title == "":
		return Activity{}, invalid("title")
	case !validClock(a.Time):
		return Activity{}, invalid("time")
	}
	a.ID = NewID()
	a.Completed = false

	err := s.Update(func(d Data) Data {
		d.Activities = append(d.Activities, a)
		return d
	})
	return a, err
}

func (s *Store) SetActivityCompleted(id string, completed bool) error {
	return s.mutate(func(d *Data) bool {
		i := slices.IndexFunc(d.Activities, func(a Activity) bool { return a.ID == id })
		if i < 0 {
			return false
		}
		d.Activities[i].Completed = completed
		return true
	})
}

func (s *Store) DeleteActivity(id string) error {
	return s.mutate(func(d *Data) bool {
		n := len(d.Activities)
		d.Activities = slices.DeleteFunc(d.Activities, func(a Activity) bool { return a.ID == id })
		return len(d.Activities) != n
	})
}

func (s *Store) UpdateSettings(st Settings) error {
	if !st.Valid() {
		return invalid("settings")
	}
	return s.Update(func(d Data) Data {
		d.Settings = st
		return d
	})
}

// mutate runs fn under Update and reports ErrNotFound when fn matched nothing.
func (s *Store) mutate(fn func(*Data) bool) error {
	found := false
	err := s.Update(func(d Data) Data {
		found = fn(&d)
		return d
	})
	if !found {
		return ErrNotFound
	}
	return err
}
