package http

import (
	"errors"
	"net/http"

	"github.com/sagarc03/remotestore"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: a forbidden request must never surface as not found.
var errorMappings = []errorMapping{
	{remotestore.ErrForbidden, http.StatusForbidden, "forbidden", "Forbidden"},
	{remotestore.ErrInvalidInput, http.StatusBadRequest, "invalid_path", "Invalid path"},
	{remotestore.ErrNotFound, http.StatusNotFound, "not_found", "Object not found"},
	{remotestore.ErrInvalidContent, http.StatusUnprocessableEntity, "invalid_content", "Body does not match its content type"},
	{remotestore.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed", "ETag mismatch"},
	{remotestore.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large", "Request body too large"},
	{remotestore.ErrBackingStore, http.StatusServiceUnavailable, "unavailable", "Backing store unavailable"},
}

// mappingFor finds the mapping for err. A body cut off by
// http.MaxBytesReader counts as remotestore.ErrTooLarge.
func mappingFor(err error) (errorMapping, bool) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		err = remotestore.ErrTooLarge
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// StatusFor returns the HTTP status an error maps to.
func StatusFor(err error) int {
	if m, ok := mappingFor(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// HandleError writes the JSON error response for err.
func HandleError(w http.ResponseWriter, err error) {
	if m, ok := mappingFor(err); ok {
		WriteError(w, m.status, m.code, m.message)
		return
	}

	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}
