package store

import (
	"slices"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Medication struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
	Time   string `json:"time"` // HH:MM
	Taken  bool   `json:"taken"`
}

type Appointment struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// Instant parses Date and Time in loc.
func (a Appointment) Instant(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}

type Activity struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Time      string `json:"time"`
	Completed bool   `json:"completed"`
}

type Doctor struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type EmergencyInfo struct {
	PrimaryDoctor Doctor    `json:"primaryDoctor"`
	Allergies     string    `json:"allergies"`
	Conditions    string    `json:"conditions"`
	Contacts      []Contact `json:"contacts"`
}

func (e EmergencyInfo) clone() EmergencyInfo {
	e.Contacts = slices.Clone(e.Contacts)
	return e
}

type Theme string

const (
	ThemeLight        Theme = "light"
	ThemeDark         Theme = "dark"
	ThemeHighContrast Theme = "high-contrast"
)

type FontSize string

const (
	FontXL  FontSize = "text-xl"
	Font2XL FontSize = "text-2xl"
	Font3XL FontSize = "text-3xl"
	Font4XL FontSize = "text-4xl"
)

type Settings struct {
	Theme    Theme    `json:"theme"`
	FontSize FontSize `json:"fontSize"`
}

func (s Settings) Valid() bool {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeHighContrast:
	default:
		return false
	}
	switch s.FontSize {
	case FontXL, Font2XL, Font3XL, Font4XL:
		return true
	}
	return false
}

// Data is a snapshot of everything the store owns.
type Data struct {
	Medications   []Medication  `json:"medications"`
	Appointments  []Appointment `json:"appointments"`
	Activities    []Activity    `json:"activities"`
	EmergencyInfo EmergencyInfo `json:"emergencyInfo"`
	Settings      Settings      `json:"settings"`
}

func Initial() Data {
	return Data{
		Medications:  []Medication{},
		Appointments: []Appointment{},
		Activities:   []Activity{},
		EmergencyInfo: EmergencyInfo{
			Contacts: []Contact{},
		},
		Settings: Settings{Theme: ThemeLight, FontSize: Font2XL},
	}
}

func (d Data) Clone() Data {
	d.Medications = slices.Clone(d.Medications)
	d.Appointments = slices.Clone(d.Appointments)
	d.Activities = slices.Clone(d.Activities)
	d.EmergencyInfo = d.EmergencyInfo.clone()
	return d
}
