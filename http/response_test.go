package http_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/remotestore"
	rshttp "github.com/sagarc03/remotestore/http"
	"github.com/stretchr/testify/assert"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"forbidden", remotestore.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", remotestore.ErrNotFound, http.StatusNotFound, "not_found"},
		{"invalid input", remotestore.ErrInvalidInput, http.StatusBadRequest, "invalid_path"},
		{"invalid content", remotestore.ErrInvalidContent, http.StatusUnprocessableEntity, "invalid_content"},
		{"precondition", remotestore.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed"},
		{"too large", remotestore.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
		{"backing store", remotestore.ErrBackingStore, http.StatusServiceUnavailable, "unavailable"},
		{"unexpected", errors.New("some unexpected error"), http.StatusInternalServerError, "internal_error"},
		{"wrapped not found", fmt.Errorf("get object tasks/a: %w", remotestore.ErrNotFound), http.StatusNotFound, "not_found"},
		{"body over limit", fmt.Errorf("put object tasks/a: %w", &http.MaxBytesError{Limit: 8}), http.StatusRequestEntityTooLarge, "too_large"},
		{"forbidden wins", errors.Join(remotestore.ErrNotFound, remotestore.ErrForbidden), http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			rshttp.HandleError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, rshttp.StatusFor(tt.err))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.code+`"`)
		})
	}
}

func TestWriteError_Success(t *testing.T) {
	rec := httptest.NewRecorder()

	rshttp.WriteError(rec, http.StatusBadRequest, "bad_request", "Invalid request")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"error":"bad_request"`)
	assert.Contains(t, rec.Body.String(), `"message":"Invalid request"`)
}
