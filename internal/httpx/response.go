// Package httpx holds the small JSON response helpers shared by all
// handlers.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/beedevservices/portal/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

// Decode reads the request body as JSON into dst, rejecting unknown
// fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// WorkflowError maps the service error taxonomy onto HTTP statuses:
// validation 422, permission 403, conflict 409, anything else 500.
func WorkflowError(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsValidation(err):
		JSONError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case apperr.IsPermission(err):
		JSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case apperr.IsConflict(err):
		JSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
