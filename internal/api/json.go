package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/dispatch"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decode reads a JSON body into v and runs its validation rules.
func decode(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var verrs validation.Errors
	switch {
	case apperr.IsStorage(err), errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrEmptyDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrNotConfirmed):
		return http.StatusPreconditionFailed
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidColor), errors.Is(err, apperr.ErrInvalidTheme), errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	body := errorBody(err.Error())

	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		body = errResponse{Error: "validation failed", Fields: make(map[string]string, len(verrs))}
		for field, ferr := range verrs {
			body.Fields[field] = ferr.Error()
		}
	case status == http.StatusInternalServerError:
		slog.Error("api: request failed", slog.String("error", err.Error()))
		body = errorBody("internal error")
	case status == http.StatusServiceUnavailable:
		slog.Warn("api: storage unavailable", slog.String("error", err.Error()))
	}
	writeJSON(w, status, body)
}
