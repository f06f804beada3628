// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Domain packages wrap these so the
// transport can map them without importing every package's errors.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflicting state")
	ErrValidation = errors.New("validation failed")
	ErrLocked     = errors.New("resource locked")
	ErrTooLarge   = errors.New("request body too large")
)

// Detailed is implemented by errors that carry a list of field problems.
type Detailed interface {
	Details() []string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var details []string
	var d Detailed
	if errors.As(err, &d) {
		details = d.Details()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		ProblemWithErrors(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error(), details)
	case errors.Is(err, ErrLocked):
		Problem(w, http.StatusLocked, "Locked", err.Error())
	case errors.Is(err, ErrTooLarge):
		Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
