// Package handlers exposes the workflow services as a JSON API. Handlers
// decode input, call one service operation, and map the error taxonomy to
// a status via httpx.WorkflowError; no business rules live here.
package handlers

import (
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/httpx"
)

// pathID parses the {id} segment of the route pattern.
func pathID(r *http.Request) (uint, bool) {
	id64, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// serviceError maps lookup misses to 404 and everything else through the
// workflow taxonomy.
func serviceError(w http.ResponseWriter, err error) {
	if err == gorm.ErrRecordNotFound {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.WorkflowError(w, err)
}

func badRequest(w http.ResponseWriter) {
	httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
}
