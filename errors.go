package remotestore

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller's scope does not cover the request
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidContent is returned when a JSON body fails to parse
	ErrInvalidContent = errors.New("invalid content")
	// ErrBackingStore is returned when the backing store fails a read, write, query or delete
	ErrBackingStore = errors.New("backing store failure")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrPreconditionFailed is returned when an If-Match precondition does not hold
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrTooLarge marks an upload over the server's size limit
	ErrTooLarge = errors.New("content too large")
)
