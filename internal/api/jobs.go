package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scanhub/scanhub/internal/model"
)

const (
	maxBodySize = 1 << 20 // 1 MB
)

// createJobRequest is the JSON body for POST /v1/jobs. Absent settings
// fields fall back to the scan defaults.
type createJobRequest struct {
	DeviceID     string       `json:"device_id"`
	DocumentType string       `json:"document_type"`
	Settings     *settingsReq `json:"settings"`
}

type settingsReq struct {
	Resolution   *int    `json:"resolution"`
	ColorMode    *string `json:"color_mode"`
	PaperSize    *string `json:"paper_size"`
	Duplex       *bool   `json:"duplex"`
	OutputFormat *string `json:"output_format"`
	Quality      *int    `json:"quality"`
}

// listJobsResponse wraps the job list response.
type listJobsResponse struct {
	Jobs  []model.Job `json:"jobs"`
	Count int         `json:"count"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.DeviceID == "" {
		s.writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	if req.DocumentType == "" {
		req.DocumentType = model.DocText
	}

	settings, err := mergeSettings(req.Settings)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := s.svc.CreateJob(req.DeviceID, req.DocumentType, settings)
	if err != nil {
		s.writeServiceError(w, err, "failed to create job")
		return
	}
	s.writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.svc.ListJobs()
	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.svc.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get job")
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.svc.StartJob(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to start job")
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.svc.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to cancel job")
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.GetResult(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get result")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.PreviewFile(chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err, "failed to preview file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mergeSettings overlays the request settings on the scan defaults.
func mergeSettings(req *settingsReq) (model.ScanSettings, error) {
	settings := model.DefaultScanSettings()
	if req == nil {
		return settings, nil
	}

	if req.Resolution != nil {
		if *req.Resolution <= 0 {
			return settings, errBadSetting("resolution must be positive")
		}
		settings.Resolution = *req.Resolution
	}
	if req.ColorMode != nil {
		settings.ColorMode = *req.ColorMode
	}
	if req.PaperSize != nil {
		settings.PaperSize = *req.PaperSize
	}
	if req.Duplex != nil {
		settings.Duplex = *req.Duplex
	}
	if req.OutputFormat != nil {
		settings.OutputFormat = *req.OutputFormat
	}
	if req.Quality != nil {
		if *req.Quality < 1 || *req.Quality > 100 {
			return settings, errBadSetting("quality must be between 1 and 100")
		}
		settings.Quality = *req.Quality
	}
	return settings, nil
}

type errBadSetting string

func (e errBadSetting) Error() string { return string(e) }

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
