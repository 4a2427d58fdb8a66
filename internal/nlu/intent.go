package nlu

import (
	"fmt"
	"strconv"
	"strings"
)

type View string

const (
	ViewDashboard    View = "DASHBOARD"
	ViewMedications  View = "MEDICATIONS"
	ViewAppointments View = "APPOINTMENTS"
	ViewActivities   View = "ACTIVITIES"
	ViewEmergency    View = "EMERGENCY"
	ViewSettings     View = "SETTINGS"
)

var Views = []View{
	ViewDashboard,
	ViewMedications,
	ViewAppointments,
	ViewActivities,
	ViewEmergency,
	ViewSettings,
}

// ParseView matches s against the known views, ignoring case.
func ParseView(s string) (View, bool) {
	v := View(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Views {
		if v == known {
			return v, true
		}
	}
	return "", false
}

type Kind string

const (
	KindNavigate            Kind = "navigateToView"
	KindAddMedication       Kind = "addMedication"
	KindMarkMedicationTaken Kind = "markMedicationAsTaken"
	KindAddAppointment      Kind = "addAppointment"
	KindGetDailySummary     Kind = "getDailySummary"
	KindSpeak               Kind = "speak"
	KindUnrecognized        Kind = "unrecognized"
)

// Intent is one structured request. The set of implementations is closed.
type Intent interface {
	Kind() Kind
	intent()
}

type Navigate struct {
	View string
}

type AddMedication struct {
	Name   string
	Dosage string
	Time   string
}

type MarkMedicationTaken struct {
	Name string
}

type AddAppointment struct {
	Title    string
	Date     string
	Time     string
	Location string
}

type GetDailySummary struct{}

type Speak struct {
	Message string
}

// Unrecognized carries the call name the service produced.
type Unrecognized struct {
	Name string
}

func (Navigate) Kind() Kind            { return KindNavigate }
func (AddMedication) Kind() Kind       { return KindAddMedication }
func (MarkMedicationTaken) Kind() Kind { return KindMarkMedicationTaken }
func (AddAppointment) Kind() Kind      { return KindAddAppointment }
func (GetDailySummary) Kind() Kind     { return KindGetDailySummary }
func (Speak) Kind() Kind               { return KindSpeak }
func (Unrecognized) Kind() Kind        { return KindUnrecognized }

func (Navigate) intent()            {}
func (AddMedication) intent()       {}
func (MarkMedicationTaken) intent() {}
func (AddAppointment) intent()      {}
func (GetDailySummary) intent()     {}
func (Speak) intent()               {}
func (Unrecognized) intent()        {}

// FromCall maps a remote function call onto its Intent. Missing arguments
// become empty strings; validation is left to the dispatcher.
func FromCall(c Call) Intent {
	arg := func(key string) string { return argString(c.Args, key) }

	switch Kind(c.Name) {
	case KindNavigate:
		return Navigate{View: arg("view")}
	case KindAddMedication:
		return AddMedication{Name: arg("name"), Dosage: arg("dosage"), Time: arg("time")}
	case KindMarkMedicationTaken:
		return MarkMedicationTaken{Name: arg("name")}
	case KindAddAppointment:
		return AddAppointment{Title: arg("title"), Date: arg("date"), Time: arg("time"), Location: arg("location")}
	case KindGetDailySummary:
		return GetDailySummary{}
	case KindSpeak:
		return Speak{Message: arg("message")}
	default:
		return Unrecognized{Name: c.Name}
	}
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
