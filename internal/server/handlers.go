package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ATHScanner/internal/recorder"
	"ATHScanner/internal/scanner"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// handleResults serves the stored document, then the in-memory report, then
// an empty document.
func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Results != nil {
		doc, err := s.deps.Results.Latest()
		if err != nil {
			s.log.Warnf("read stored results: %v", err)
		}
		if doc != nil {
			s.writeJSON(w, http.StatusOK, doc)
			return
		}
	}
	if last := s.deps.Scanner.LastReport(); last != nil {
		s.writeJSON(w, http.StatusOK, recorder.NewResultsDocument(last, s.deps.Location))
		return
	}
	s.writeJSON(w, http.StatusOK, recorder.ResultsDocument{Stocks: []recorder.Stock{}})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Scanner.CurrentProgress())
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.Scanner.StartScan(r.Context())
	switch {
	case errors.Is(err, scanner.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, "Scan already running")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"message": "Scan started", "scan_id": id})
	}
}

func (s *Server) handleCancelScan(w http.ResponseWriter, _ *http.Request) {
	err := s.deps.Scanner.CancelScan()
	switch {
	case errors.Is(err, scanner.ErrNotRunning):
		s.writeError(w, http.StatusConflict, "No scan running")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"message": "Cancellation requested"})
	}
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	lines, err := tailLines(s.deps.LogFile, s.cfg.LogTail)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (s *Server) handleSymbolCount(w http.ResponseWriter, r *http.Request) {
	if s.deps.Symbols == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"count": 0, "cached": false})
		return
	}
	n, cached, err := s.deps.Symbols.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": n, "cached": cached})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.writeJSON(w, http.StatusOK, []recorder.ScanSummary{})
		return
	}
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.deps.History.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []recorder.ScanSummary{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}
