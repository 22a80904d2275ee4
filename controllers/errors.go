package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/models"
)

// statusForError maps the service error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrMenuItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbiddenTransition):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case models.IsWriteError(err), models.IsReadError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, &models.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return uint(id), nil
}

// requestContext bounds store calls made on behalf of a request. A zero timeout means no bound.
func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(c.Request.Context(), timeout)
	}
	return context.WithCancel(c.Request.Context())
}
