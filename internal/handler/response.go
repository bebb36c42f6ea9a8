package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are attached to the context for error reporting and
// their cause is not echoed to the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	msg := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		_ = c.Error(err)
		msg = service.ErrUpstreamUnavailable.Error()
	case http.StatusInternalServerError:
		_ = c.Error(err)
		msg = http.StatusText(code)
	}
	c.JSON(code, ErrorResponse{Error: msg})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrRideNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyClaimed):
		return http.StatusConflict

	case errors.Is(err, service.ErrCaptainMismatch):
		return http.StatusForbidden

	case errors.Is(err, service.ErrInvalidCredential):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
