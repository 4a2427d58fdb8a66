// Package api exposes the domain store and the command pipeline over HTTP for
// manual edits and UIs that cannot use the voice path.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carevox/internal/dispatch"
	"carevox/internal/nlu"
	"carevox/internal/store"
)

const maxBody = 1 << 20

// Commander runs a typed transcript through interpretation and dispatch.
type Commander interface {
	Command(ctx context.Context, text string) ([]string, error)
}

// Mic controls the speech capture session.
type Mic interface {
	Toggle()
	Listening() bool
}

type Options struct {
	Commander Commander
	Mic       Mic
	Now       func() time.Time
	Logger    *slog.Logger
}

type Handler struct {
	store *store.Store
	opts  Options
}

func NewHandler(st *store.Store, opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{store: st, opts: opts}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", h.getData)
		r.Get("/summary", h.getSummary)
		r.Get("/status", h.getStatus)
		r.Post("/command", h.postCommand)
		r.Post("/listen", h.postListen)

		r.Route("/medications", func(r chi.Router) {
			r.Get("/", h.listMedications)
			r.Post("/", h.addMedication)
			r.Patch("/{id}", h.patchMedication)
			r.Delete("/{id}", h.deleteMedication)
		})
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.addAppointment)
			r.Delete("/{id}", h.deleteAppointment)
		})
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.listActivities)
			r.Post("/", h.addActivity)
			r.Patch("/{id}", h.patchActivity)
			r.Delete("/{id}", h.deleteActivity)
		})
		r.Route("/emergency", func(r chi.Router) {
			r.Get("/", h.getEmergency)
			r.Put("/", h.putEmergency)
			r.Post("/contacts", h.addContact)
			r.Delete("/contacts/{id}", h.deleteContact)
		})
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
	})

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.opts.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, nlu.ErrBusy):
		status = http.StatusConflict
	default:
		h.opts.Logger.Error("Request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get())
}

type textBody struct {
	Text string `json:"text"`
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	now := h.opts.Now().In(h.store.Location())
	writeJSON(w, http.StatusOK, textBody{Text: dispatch.Summary(h.store.Get(), now)})
}

type statusBody struct {
	Listening bool `json:"listening"`
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	var st statusBody
	if h.opts.Mic != nil {
		st.Listening = h.opts.Mic.Listening()
	}
	writeJSON(w, http.StatusOK, st)
}

type commandReply struct {
	Announcements []string `json:"announcements"`
}

func (h *Handler) postCommand(w http.ResponseWriter, r *http.Request) {
	if h.opts.Commander == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "commands unavailable"})
		return
	}
	var req textBody
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "empty text"})
		return
	}

	msgs, err := h.opts.Commander.Command(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandReply{Announcements: msgs})
}

func (h *Handler) postListen(w http.ResponseWriter, r *http.Request) {
	if h.opts.Mic == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "microphone unavailable"})
		return
	}
	h.opts.Mic.Toggle()
	writeJSON(w, http.StatusOK, statusBody{Listening: h.opts.Mic.Listening()})
}
