// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the shared response helpers. Every error goes through
// fail, which writes the ErrorResponse envelope and logs server-side
// failures with the request-scoped logger.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-live-polls/internal/http/middleware"
	"github.com/tbourn/go-live-polls/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Poll not found"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// together with cause when it is non-nil.
func fail(c *gin.Context, status int, code, msg string, cause ...error) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if len(cause) > 0 && cause[0] != nil {
			ev = ev.Err(cause[0])
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps a service error to its HTTP status and code. fallback is
// the message used for unexpected failures.
func failService(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Msg)
	case errors.Is(err, services.ErrPollNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, msgPollNotFound)
	case errors.Is(err, services.ErrPollExpired):
		fail(c, http.StatusForbidden, ErrCodeExpired, msgPollExpired)
	case errors.Is(err, services.ErrDuplicateVote):
		fail(c, http.StatusForbidden, ErrCodeDuplicateVote, msgDuplicateVote)
	case errors.Is(err, services.ErrIdempotencyConflict):
		fail(c, http.StatusConflict, ErrCodeIdemConflict, msgIdemConflict)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, fallback, err)
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
