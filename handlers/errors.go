package handlers

import (
	"errors"
	"net/http"

	"visaflow/database/repository"
	"visaflow/services/availability"
	"visaflow/services/booking"
	"visaflow/services/monitoring"
	"visaflow/services/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *booking.ValidationError
	var legalErr *registry.LegalConstraintError
	switch {
	case errors.As(err, &verr), errors.Is(err, monitoring.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.As(err, &legalErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrUnknownAdapter),
		errors.Is(err, monitoring.ErrTargetNotFound),
		errors.Is(err, booking.ErrUnknownAction),
		errors.Is(err, availability.ErrNoSources),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, monitoring.ErrAlreadyMonitoring):
		return http.StatusConflict
	case errors.Is(err, monitoring.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the standard {"error", "message"} body.
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	logger := getLogger(c)
	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	} else {
		logger.Warn(message, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message, "message": err.Error()})
}
