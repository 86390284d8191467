package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/scheduler"
)

type createScheduleRequest struct {
	Name    string          `json:"name"`
	Spec    string          `json:"spec"`
	Request json.RawMessage `json:"request"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeJSON(w, http.StatusOK, []scheduler.Entry{})
		return
	}
	entries, err := s.schedules.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}

	var body createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON format", Details: err.Error()})
		return
	}
	if len(body.Request) == 0 {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}

	req, err := pattern.DecodeRequestBytes(body.Request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entry, err := s.schedules.Add(r.Context(), body.Name, body.Spec, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}
	if err := s.schedules.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
