package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carevox/internal/kv"
	"carevox/internal/nlu"
	"carevox/internal/store"
)

type fakeCommander struct {
	got  string
	msgs []string
	err  error
}

func (f *fakeCommander) Command(_ context.Context, text string) ([]string, error) {
	f.got = text
	return f.msgs, f.err
}

type fakeMic struct{ on bool }

func (f *fakeMic) Toggle() { f.on = !f.on }
func (f *fakeMic) Listening() bool { return f.on }

func newServer(t *testing.T, opts Options) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), kv.NewMemory(), store.Options{Location: time.UTC})
	require.NoError(t, err)

	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	}
	srv := httptest.NewServer(NewHandler(st, opts).Routes())
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestMedicationLifecycle(t *testing.T) {
	srv, st := newServer(t, Options{})
	base := srv.URL + "/api/medications"

	var evening, morning store.Medication
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, base, store.Medication{Name: "Statin", Dosage: "20mg", Time: "20:00"}, &evening))
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, base, store.Medication{Name: "Aspirin", Dosage: "100mg", Time: "08:00"}, &morning))
	assert.NotEmpty(t, evening.ID)

	var list []store.Medication
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, base, nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Aspirin", list[0].Name)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodPatch, base+"/"+morning.ID, takenPatch{Taken: true}, nil))
	assert.True(t, st.Get().Medications[0].Taken)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base+"/"+evening.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, base+"/"+evening.ID, nil, nil))
	assert.Len(t, st.Get().Medications, 1)
}

func TestValidationErrors(t *testing.T) {
	srv, _ := newServer(t, Options{})

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/medications", store.Medication{Name: "X", Dosage: "1", Time: "8am"}, &e))
	assert.Contains(t, e.Error, "time")

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/appointments", store.Appointment{Title: "X", Date: "tomorrow", Time: "09:00"}, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, srv.URL+"/api/settings", store.Settings{Theme: "neon", FontSize: store.FontXL}, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/activities", "not an object", nil))
}

func TestAppointmentsActivitiesAndSummary(t *testing.T) {
	srv, st := newServer(t, Options{})

	var a store.Appointment
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/appointments",
		store.Appointment{Title: "Dentist", Date: "2026-10-20", Time: "10:00", Location: "Main St"}, &a))

	var act store.Activity
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/activities", store.Activity{Title: "Walk", Time: "07:30"}, &act))
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodPatch, srv.URL+"/api/activities/"+act.ID, completedPatch{Completed: true}, nil))
	assert.True(t, st.Get().Activities[0].Completed)

	var sum textBody
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/summary", nil, &sum))
	assert.Equal(t, "You have taken all your medications for today. Your next appointment is Dentist on Tuesday, October 20 at 10:00.", sum.Text)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/appointments/"+a.ID, nil, nil))
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/activities/"+act.ID, nil, nil))

	var data store.Data
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/data", nil, &data))
	assert.Empty(t, data.Appointments)
	assert.Empty(t, data.Activities)
}

func TestEmergencyAndSettings(t *testing.T) {
	srv, st := newServer(t, Options{})

	var info store.EmergencyInfo
	assert.Equal(t, http.StatusOK, do(t, http.MethodPut, srv.URL+"/api/emergency", store.EmergencyInfo{
		PrimaryDoctor: store.Doctor{Name: "Dr. Lee", Phone: "555-0100"},
		Allergies:     "Penicillin",
		Contacts:      []store.Contact{{Name: "Sam", Phone: "555-0101", Relationship: "Child"}},
	}, &info))
	require.Len(t, info.Contacts, 1)
	assert.NotEmpty(t, info.Contacts[0].ID)

	var c store.Contact
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/emergency/contacts", store.Contact{Name: "Ana", Phone: "555-0102"}, &c))
	assert.Len(t, st.Get().EmergencyInfo.Contacts, 2)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/emergency/contacts/"+info.Contacts[0].ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, srv.URL+"/api/emergency/contacts/"+info.Contacts[0].ID, nil, nil))
	assert.Equal(t, "Dr. Lee", st.Get().EmergencyInfo.PrimaryDoctor.Name)

	want := store.Settings{Theme: store.ThemeHighContrast, FontSize: store.Font4XL}
	assert.Equal(t, http.StatusOK, do(t, http.MethodPut, srv.URL+"/api/settings", want, nil))
	var got store.Settings
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/settings", nil, &got))
	assert.Equal(t, want, got)
}

func TestCommandAndListen(t *testing.T) {
	cmd := &fakeCommander{msgs: []string{"Navigating to settings."}}
	mic := &fakeMic{}
	srv, _ := newServer(t, Options{Commander: cmd, Mic: mic})

	var reply commandReply
	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/command", textBody{Text: "open settings"}, &reply))
	assert.Equal(t, "open settings", cmd.got)
	assert.Equal(t, []string{"Navigating to settings."}, reply.Announcements)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/command", textBody{}, nil))

	cmd.err = nlu.ErrBusy
	assert.Equal(t, http.StatusConflict, do(t, http.MethodPost, srv.URL+"/api/command", textBody{Text: "again"}, nil))

	var st statusBody
	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/listen", nil, &st))
	assert.True(t, st.Listening)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/status", nil, &st))
	assert.True(t, st.Listening)
}

func TestCommandUnavailable(t *testing.T) {
	srv, _ := newServer(t, Options{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodPost, srv.URL+"/api/command", textBody{Text: "hi"}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodPost, srv.URL+"/api/listen", nil, nil))
}
