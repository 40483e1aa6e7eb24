package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"libris.org/internal/accounts"
	"libris.org/internal/audit"
	"libris.org/internal/catalog"
)

// envelope is the stable response shape for every endpoint under /v1.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, code int, message string, data any) {
	writeJSON(w, code, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

func writeFailure(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, envelope{
		Success:   false,
		Message:   message,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

// handleDomainError maps typed service failures onto HTTP statuses. Unknown
// errors become a generic 500 so no internal detail leaks.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, accounts.ErrInvalidInput),
		errors.Is(err, catalog.ErrNotAvailable),
		errors.Is(err, catalog.ErrDuplicateISBN),
		errors.Is(err, accounts.ErrDuplicateEmail):
		writeFailure(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, accounts.ErrPasswordMismatch):
		writeFailure(w, r, http.StatusNotFound, err.Error())
	default:
		writeFailure(w, r, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeFailure(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
