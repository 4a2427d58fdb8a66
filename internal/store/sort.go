package store

import (
	"slices"
	"strings"
	"time"
)

// SortMedications orders by time of day; equal times keep insertion order.
func SortMedications(meds []Medication) {
	slices.SortStableFunc(meds, func(a, b Medication) int {
		return strings.Compare(a.Time, b.Time)
	})
}

func SortActivities(acts []Activity) {
	slices.SortStableFunc(acts, func(a, b Activity) int {
		return strings.Compare(a.Time, b.Time)
	})
}

// SortAppointments orders by the combined local instant. Records that do not
// parse go last, in their original order.
func SortAppointments(appts []Appointment, loc *time.Location) {
	slices.SortStableFunc(appts, func(a, b Appointment) int {
		ta, errA := a.Instant(loc)
		tb, errB := b.Instant(loc)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return ta.Compare(tb)
	})
}

func (d *Data) normalize(loc *time.Location) {
	if d.Medications == nil {
		d.Medications = []Medication{}
	}
	if d.Appointments == nil {
		d.Appointments = []Appointment{}
	}
	if d.Activities == nil {
		d.Activities = []Activity{}
	}
	if d.EmergencyInfo.Contacts == nil {
		d.EmergencyInfo.Contacts = []Contact{}
	}
	SortMedications(d.Medications)
	SortAppointments(d.Appointments, loc)
	SortActivities(d.Activities)
}
