package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scanhub/scanhub/internal/model"
)

// addDeviceRequest is the JSON body for POST /v1/devices.
type addDeviceRequest struct {
	Name   string `json:"name"`
	Class  string `json:"class"`
	System string `json:"system"`
}

// listDevicesResponse wraps the device list response.
type listDevicesResponse struct {
	Devices []model.Device `json:"devices"`
	Count   int            `json:"count"`
}

type testConnectionResponse struct {
	DeviceID string `json:"device_id"`
	Success  bool   `json:"success"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []model.Device
	if system := r.URL.Query().Get("system"); system != "" {
		devices = s.svc.ListDevicesBySystem(system)
	} else {
		devices = s.svc.ListDevices()
	}

	s.writeJSON(w, http.StatusOK, listDevicesResponse{
		Devices: devices,
		Count:   len(devices),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.GetDevice(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get device")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Class == "" {
		req.Class = model.ClassFlatbed
	}

	d, err := s.svc.AddDevice(req.Name, req.Class, req.System)
	if err != nil {
		s.writeServiceError(w, err, "failed to add device")
		return
	}
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveDevice(chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err, "failed to remove device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.svc.Capabilities(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get capabilities")
		return
	}
	s.writeJSON(w, http.StatusOK, caps)
}

func (s *Server) handleResetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.ResetDeviceStatus(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to reset device")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.svc.TestConnection(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "failed to test connection")
		return
	}
	s.writeJSON(w, http.StatusOK, testConnectionResponse{DeviceID: id, Success: ok})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	devices, err := s.svc.DiscoverDevices(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "discovery failed")
		return
	}
	s.writeJSON(w, http.StatusOK, listDevicesResponse{
		Devices: devices,
		Count:   len(devices),
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.DiscoveryProviders())
}
