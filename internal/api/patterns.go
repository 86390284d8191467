package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
)

// startPatternResponse acknowledges an accepted pattern request.
type startPatternResponse struct {
	Message     string              `json:"message"`
	RunID       string              `json:"runId"`
	DeviceID    string              `json:"deviceId"`
	ColorCount  int                 `json:"colorCount"`
	Pattern     pattern.PatternType `json:"pattern"`
	RepeatCount int                 `json:"repeatCount"`
}

// historyEntry is the JSON form of a persisted run.
type historyEntry struct {
	RunID           string     `json:"runId"`
	DeviceID        string     `json:"deviceId"`
	State           string     `json:"state"`
	Pattern         string     `json:"pattern"`
	Transition      string     `json:"transition"`
	RepeatCount     int        `json:"repeatCount"`
	ColorCount      int        `json:"colorCount"`
	CyclesCompleted int        `json:"cyclesCompleted"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

func toHistoryEntry(run models.PatternRun) historyEntry {
	entry := historyEntry{
		RunID:           run.ID,
		DeviceID:        run.DeviceID,
		State:           run.Status,
		Pattern:         run.PatternType,
		Transition:      run.Transition,
		RepeatCount:     run.RepeatCount,
		ColorCount:      run.StepCount,
		CyclesCompleted: run.CyclesCompleted,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
	if run.Error != nil {
		entry.Error = *run.Error
	}
	return entry
}

func (s *Server) handleStartPattern(w http.ResponseWriter, r *http.Request) {
	req, err := pattern.DecodeRequest(r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	run, err := s.playback.Submit(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	log.Printf("▶️ Accepted %s pattern %s for %s (%d colors)", req.Settings.Type, run.ID, req.DeviceID, len(req.Steps))
	writeJSON(w, http.StatusAccepted, startPatternResponse{
		Message:     "Bulb control pattern started successfully",
		RunID:       run.ID,
		DeviceID:    req.DeviceID,
		ColorCount:  len(req.Steps),
		Pattern:     req.Settings.Type,
		RepeatCount: req.Settings.RepeatCount,
	})
}

func (s *Server) handleListActiveRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.playback.ActiveRuns())
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := []historyEntry{}
	if s.history == nil {
		writeJSON(w, http.StatusOK, entries)
		return
	}

	var (
		runs []models.PatternRun
		err  error
	)
	if deviceID := r.URL.Query().Get("deviceId"); deviceID != "" {
		runs, err = s.history.FindByDevice(r.Context(), deviceID, limit)
	} else {
		runs, err = s.history.FindRecent(r.Context(), limit)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	for _, run := range runs {
		entries = append(entries, toHistoryEntry(run))
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run := s.playback.GetRun(id)
	if run == nil {
		writeError(w, http.StatusNotFound, "pattern run not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, run.Status())
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.playback.CancelRun(id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Pattern run cancellation requested",
		"runId":   id,
	})
}

func (s *Server) handleStopDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if !s.playback.CancelDevice(deviceID) {
		writeError(w, http.StatusNotFound, "no active pattern on device "+deviceID)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":  "Pattern stop requested",
		"deviceId": deviceID,
	})
}
