package api

import (
	"errors"
	"net/http"
	"strconv"

	"taskboard/internal/models"
	"taskboard/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.tasks.CreateTask(r.Context(), identityFrom(r.Context()), req.toInput())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(r.Context(), identityFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.tasks.UpdateTask(r.Context(), identityFrom(r.Context()), id, req.toInput())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(r.Context(), identityFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.xlsx"`)
	if err := s.export.Export(r.Context(), identity, w); err != nil {
		requestLogger(s.logger, r).Error().Err(err).Str("identity", identity).Msg("export failed")
		w.Header().Del("Content-Disposition")
		writeError(w, http.StatusInternalServerError, "export failed")
	}
}

// handleTelegramKey returns a handshake key for users that have not linked a chat yet and
// an empty key for those that have.
func (s *HTTPServer) handleTelegramKey(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	_, linked, err := s.bindings.GetBinding(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if linked {
		writeJSON(w, http.StatusOK, map[string]any{"key": "", "linked": true})
		return
	}

	key, err := s.keys.GenerateKey(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "linked": false})
}

func (s *HTTPServer) handleTelegramSummary(w http.ResponseWriter, r *http.Request) {
	text, err := s.board.SendSummary(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		requestLogger(s.logger, r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
