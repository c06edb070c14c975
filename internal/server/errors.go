package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/pipeline"
)

// ErrValidation indicates a malformed request parameter or body.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the status code for an error from a handler's
// collaborators.
func HTTPStatus(err error) int {
	var verr *ErrValidation
	switch {
	case errors.As(err, &verr), errors.Is(err, db.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrCycleInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
