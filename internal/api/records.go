package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"carevox/internal/store"
)

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().Medications)
}

func (h *Handler) addMedication(w http.ResponseWriter, r *http.Request) {
	var m store.Medication
	if !decode(w, r, &m) {
		return
	}
	m, err := h.store.AddMedication(m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type takenPatch struct {
	Taken bool `json:"taken"`
}

func (h *Handler) patchMedication(w http.ResponseWriter, r *http.Request) {
	var p takenPatch
	if !decode(w, r, &p) {
		return
	}
	if err := h.store.SetMedicationTaken(chi.URLParam(r, "id"), p.Taken); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteMedication(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().Appointments)
}

func (h *Handler) addAppointment(w http.ResponseWriter, r *http.Request) {
	var a store.Appointment
	if !decode(w, r, &a) {
		return
	}
	a, err := h.store.AddAppointment(a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAppointment(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().Activities)
}

func (h *Handler) addActivity(w http.ResponseWriter, r *http.Request) {
	var a store.Activity
	if !decode(w, r, &a) {
		return
	}
	a, err := h.store.AddActivity(a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type completedPatch struct {
	Completed bool `json:"completed"`
}

func (h *Handler) patchActivity(w http.ResponseWriter, r *http.Request) {
	var p completedPatch
	if !decode(w, r, &p) {
		return
	}
	if err := h.store.SetActivityCompleted(chi.URLParam(r, "id"), p.Completed); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteActivity(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getEmergency(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().EmergencyInfo)
}

// putEmergency replaces the emergency info wholesale.
func (h *Handler) putEmergency(w http.ResponseWriter, r *http.Request) {
	var info store.EmergencyInfo
	if !decode(w, r, &info) {
		return
	}
	draft := h.store.EditEmergency()
	draft.Replace(info)
	if err := draft.Commit(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft.Info())
}

func (h *Handler) addContact(w http.ResponseWriter, r *http.Request) {
	var c store.Contact
	if !decode(w, r, &c) {
		return
	}
	draft := h.store.EditEmergency()
	c, err := draft.AddContact(c)
	if err == nil {
		err = draft.Commit()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) deleteContact(w http.ResponseWriter, r *http.Request) {
	draft := h.store.EditEmergency()
	if !draft.RemoveContact(chi.URLParam(r, "id")) {
		h.writeError(w, store.ErrNotFound)
		return
	}
	if err := draft.Commit(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().Settings)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var s store.Settings
	if !decode(w, r, &s) {
		return
	}
	if err := h.store.UpdateSettings(s); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
