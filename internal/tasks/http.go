package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	svc    *Service
	logger *slog.Logger
}

// RegisterRoutes mounts the task endpoints on r. Callers wrap r with the
// auth gate before calling.
func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, logger: logger}

	r.Get("/tarefas", h.listTasks)
	r.Post("/tarefa", h.createTask)
	r.Get("/tarefa/{id}", h.getTask)
	r.Put("/tarefa/{id}", h.updateTask)
	r.Delete("/tarefa/{id}", h.deleteTask)
	r.Patch("/tarefa/{id}/completa", h.setCompleta(true))
	r.Patch("/tarefa/{id}/incompleta", h.setCompleta(false))
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setCompleta(completa bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.svc.SetCompleta(r.Context(), chi.URLParam(r, "id"), completa)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *handlers) readInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errResponse{Error: "request body too large"})
			return Input{}, false
		}
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "unable to read request body"})
		return Input{}, false
	}
	in, err := ParseInput(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
		return Input{}, false
	}
	return in, true
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "tarefa not found"})
	default:
		h.logger.Error("task_handler_failed",
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
