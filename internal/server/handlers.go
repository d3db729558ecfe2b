package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/plutobench/internal/errors"
)

// handleLauncher handles GET /api/v1/launcher
func (s *Server) handleLauncher(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.describe())
}

// handleLauncherCommand handles GET /api/v1/launcher/command?port=N and
// returns the command with the port substituted.
func (s *Server) handleLauncherCommand(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(r.URL.Query().Get("port"))
	if err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, "port must be an integer").WithStatus(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d := s.describe()
	cmd, err := d.Expand(port)
	if err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, "").WithStatus(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"command": cmd,
		"timeout": d.Timeout,
	})
}

// handleDescend handles POST /api/v1/descend
func (s *Server) handleDescend(w http.ResponseWriter, r *http.Request) {
	var req DescentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		apperrors.WriteJSON(w, err, http.StatusBadRequest)
		return
	}

	resp, err := s.descend(r, &req)
	if err != nil {
		apperrors.WriteJSON(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJobStart handles POST /api/v1/jobs
func (s *Server) handleJobStart(w http.ResponseWriter, r *http.Request) {
	var req DescentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		apperrors.WriteJSON(w, err, http.StatusBadRequest)
		return
	}

	view, err := s.startJob(&req)
	if err != nil {
		apperrors.WriteJSON(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

// handleJobStatus handles GET /api/v1/jobs/{id}
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleJobCancel handles DELETE /api/v1/jobs/{id}
func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	view, err := s.cancelJob(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
