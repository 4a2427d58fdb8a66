package dispatch

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"carevox/internal/store"
)

// Summary describes the medications still to take and the next appointment
// on or after the local date of now.
func Summary(data store.Data, now time.Time) string {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var sb strings.Builder

	untaken := 0
	for _, m := range data.Medications {
		if !m.Taken {
			untaken++
		}
	}
	if untaken > 0 {
		fmt.Fprintf(&sb, "You have %d medications left today. ", untaken)
	} else {
		sb.WriteString("You have taken all your medications for today. ")
	}

	type upcoming struct {
		appt store.Appointment
		day  time.Time
	}
	var next []upcoming
	for _, a := range data.Appointments {
		day, err := time.ParseInLocation(store.DateLayout, a.Date, loc)
		if err != nil || day.Before(today) {
			continue
		}
		next = append(next, upcoming{appt: a, day: day})
	}
	slices.SortStableFunc(next, func(a, b upcoming) int {
		return a.day.Compare(b.day)
	})

	if len(next) > 0 {
		n := next[0]
		fmt.Fprintf(&sb, "Your next appointment is %s on %s at %s.", n.appt.Title, n.day.Format("Monday, January 2"), n.appt.Time)
	} else {
		sb.WriteString("You have no upcoming appointments.")
	}

	return sb.String()
}
