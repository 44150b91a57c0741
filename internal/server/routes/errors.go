package routes

import (
	"errors"
	"net/http"

	"github.com/graphloom/loom/pkg/common"
)

// statusForGraphError maps the failure taxonomy onto HTTP status codes.
// Anything outside the taxonomy is treated as an internal error.
func statusForGraphError(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation()):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrMalformedExtraction()):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound()):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict()):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal failure details out of responses.
func errorMessage(err error) string {
	if statusForGraphError(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
