package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	BasePath          = "/api/todoitems"
	maxDescriptionLen = 500
)

type descriptionRequest struct {
	Description string `json:"description"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

func RegisterRoutes(r chi.Router, m *Manager, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{m: m, logger: logger}

	r.Route(BasePath, func(r chi.Router) {
		r.Get("/", h.listTodos)
		r.Post("/", h.createTodo)
		r.Get("/{id}", h.getTodo)
		r.Put("/{id}", h.updateTodo)
		r.Put("/{id}/complete", h.setComplete(true))
		r.Put("/{id}/incomplete", h.setComplete(false))
		r.Delete("/{id}", h.deleteTodo)
	})
}

type handlers struct {
	m      *Manager
	logger *slog.Logger
}

func (h *handlers) listTodos(w http.ResponseWriter, r *http.Request) {
	items, err := h.m.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []Task{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handlers) getTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.m.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) createTodo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDescription(w, r)
	if !ok {
		return
	}
	t, err := h.m.Create(r.Context(), req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%d", BasePath, t.ID))
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) updateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := decodeDescription(w, r)
	if !ok {
		return
	}
	if _, err := h.m.Update(r.Context(), id, req.Description); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setComplete(isComplete bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if _, err := h.m.SetComplete(r.Context(), id, isComplete); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) deleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.m.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "not_found"})
	case errors.Is(err, ErrLineBreak):
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{
			Error:   "validation_error",
			Details: []fieldError{{Field: "description", Message: "description must be a single line"}},
		})
	case errors.Is(err, ErrDescriptionRequired):
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{
			Error:   "validation_error",
			Details: []fieldError{{Field: "description", Message: "description is required"}},
		})
	default:
		h.logger.Error("request_failed",
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "unexpected_error"})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_id"})
		return 0, false
	}
	return id, true
}

func decodeDescription(w http.ResponseWriter, r *http.Request) (descriptionRequest, bool) {
	var req descriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return req, false
	}
	if vErrs := validateDescription(req.Description, maxDescriptionLen); len(vErrs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{
			Error:   "validation_error",
			Details: vErrs,
		})
		return req, false
	}
	return req, true
}

func validateDescription(description string, maxLen int) []fieldError {
	var errs []fieldError

	if strings.TrimSpace(description) == "" {
		errs = append(errs, fieldError{
			Field:   "description",
			Message: "description is required",
		})
	}

	if strings.ContainsAny(description, "\r\n") {
		errs = append(errs, fieldError{
			Field:   "description",
			Message: "description must be a single line",
		})
	}

	if l := utf8.RuneCountInString(description); l > maxLen {
		errs = append(errs, fieldError{
			Field:   "description",
			Message: fmt.Sprintf("description must be at most %d characters", maxLen),
		})
	}

	return errs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
