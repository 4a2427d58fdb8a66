package nlu

import (
	"context"
	"fmt"
	"time"
)

// Request is what the understanding service receives.
type Request struct {
	Transcript  string
	ContextDate string
}

// Call is a structured function call returned by the service.
type Call struct {
	Name string
	Args map[string]any
}

// Response holds either calls or free text. Both empty means nothing usable
// came back.
type Response struct {
	Calls []Call
	Text  string
}

type Client interface {
	Understand(ctx context.Context, req Request) (Response, error)
}

const contextDateLayout = "Mon Jan 02 2006"

func ContextDate(t time.Time) string {
	return t.Format(contextDateLayout)
}

const systemInstruction = "You are a helpful assistant for a senior care application. " +
	"Your role is to understand the user's voice commands and translate them into specific function calls. " +
	"Be concise. Infer dates and times from phrases like 'tomorrow' or 'next week'."

func prompt(req Request) string {
	return fmt.Sprintf("The current date is %s. The user says: %q", req.ContextDate, req.Transcript)
}

type toolParam struct {
	name string
	desc string
	enum []string
}

type toolSpec struct {
	name     Kind
	desc     string
	params   []toolParam
	required []string
}

func viewNames() []string {
	out := make([]string, len(Views))
	for i, v := range Views {
		out[i] = string(v)
	}
	return out
}

var toolSpecs = []toolSpec{
	{
		name:     KindNavigate,
		desc:     "Navigates to a specific view in the application.",
		params:   []toolParam{{name: "view", desc: "The view to navigate to.", enum: viewNames()}},
		required: []string{"view"},
	},
	{
		name: KindAddMedication,
		desc: "Adds a new medication to the user's schedule.",
		params: []toolParam{
			{name: "name", desc: "The name of the medication."},
			{name: "dosage", desc: `The dosage, e.g., "1 pill", "10ml".`},
			{name: "time", desc: "The time to take the medication in HH:MM format."},
		},
		required: []string{"name", "dosage", "time"},
	},
	{
		name:     KindMarkMedicationTaken,
		desc:     "Marks a specific medication as taken for the day.",
		params:   []toolParam{{name: "name", desc: "The name of the medication to mark as taken."}},
		required: []string{"name"},
	},
	{
		name: KindAddAppointment,
		desc: "Adds a new appointment to the calendar. The date should be in YYYY-MM-DD format.",
		params: []toolParam{
			{name: "title", desc: "The title of the appointment."},
			{name: "date", desc: "The date of the appointment in YYYY-MM-DD format."},
			{name: "time", desc: "The time of the appointment in HH:MM format."},
			{name: "location", desc: "The location of the appointment."},
		},
		required: []string{"title", "date", "time"},
	},
	{
		name: KindGetDailySummary,
		desc: "Reads a summary of today's remaining medications and upcoming appointments.",
	},
}
