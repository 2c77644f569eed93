package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/raphaelgruber/altron-go/internal/service"
)

// maxBodyBytes bounds request bodies, attachments included.
const maxBodyBytes = 32 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrAlreadyExists), errors.Is(err, service.ErrJobFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal failure details from clients.
func errorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorMessage(status, err)})
}

// readBody reads the bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.ValidationError{Reason: "read body: " + err.Error(), Err: models.ErrMalformed}
	}
	return body, nil
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(body) == 0 && allowEmpty {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &models.ValidationError{Reason: "malformed JSON: " + err.Error(), Err: models.ErrMalformed}
	}
	return nil
}

// requiredQuery returns a non-empty query parameter.
func requiredQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", &models.ValidationError{Field: name, Reason: "is required", Err: models.ErrRequired}
	}
	return v, nil
}
