package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type quickActionRequest struct {
	DeviceID string `json:"deviceId"`
	BulbIP   string `json:"bulbIP"`
	Action   string `json:"action"`
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

func (s *Server) handleQuickAction(w http.ResponseWriter, r *http.Request) {
	var req quickActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON format", Details: err.Error()})
		return
	}
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = req.BulbIP
	}
	if deviceID == "" || strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "deviceId and action are required")
		return
	}

	ok, err := s.devices.QuickAction(r.Context(), deviceID, req.Action)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to execute action '%s'", req.Action))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully executed action '%s' on bulb %s", req.Action, deviceID),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleUpdateAlias(w http.ResponseWriter, r *http.Request) {
	deviceIP := chi.URLParam(r, "deviceIp")

	var req aliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON format", Details: err.Error()})
		return
	}

	ok, err := s.devices.UpdateAlias(r.Context(), deviceIP, req.Alias)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		log.Printf("⚠️ Failed to update alias for device %s", deviceIP)
		writeError(w, http.StatusBadRequest, "Failed to update device alias. Check if the device IP is valid and the service is accessible.")
		return
	}

	log.Printf("Updated alias for device %s to %q", deviceIP, req.Alias)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Successfully updated device alias",
		"deviceIp": deviceIP,
		"newAlias": req.Alias,
	})
}
