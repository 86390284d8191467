package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bbernstein/lacylights-bulbs/internal/services/device"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
	"github.com/bbernstein/lacylights-bulbs/internal/services/scheduler"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("Failed to write response: %v", err)
		}
	}
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps a service error onto its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ Request failed: %v", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pattern.ErrInvalidRequest),
		errors.Is(err, scheduler.ErrInvalidSchedule),
		errors.Is(err, device.ErrUnsupportedAction),
		errors.Is(err, device.ErrInvalidAlias):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrDeviceBusy):
		return http.StatusConflict
	case errors.Is(err, playback.ErrRunNotFound),
		errors.Is(err, scheduler.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, device.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
