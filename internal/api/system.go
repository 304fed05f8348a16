package api

import (
	"net/http"

	"github.com/scanhub/scanhub/internal/archive"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// historyResponse wraps the paginated history response.
type historyResponse struct {
	Entries []archive.Entry `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Info())
}

func (s *Server) handleOpenOutputDir(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.OpenOutputDir(); err != nil {
		s.writeServiceError(w, err, "failed to open output directory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.svc.JobHistory(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	if entries == nil {
		entries = []archive.Entry{}
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.HistoryStats(r.Context())
	if err != nil {
		s.logger.Error("history stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
