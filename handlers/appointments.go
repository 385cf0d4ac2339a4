package handlers

import (
	"errors"
	"net/http"
	"strings"

	"visaflow/database/repository"
	"visaflow/services/booking"
	"visaflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentHandler serves slot discovery and booking.
type AppointmentHandler struct {
	Service HybridAPI
	Results repository.ResultsRepository
}

// FindSlotsHandler handles GET /api/appointments/slots.
func (h *AppointmentHandler) FindSlotsHandler(c *gin.Context) {
	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))
	visaType := strings.TrimSpace(c.Query("visaType"))
	if len(country) != 2 || visaType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "message": "country (ISO 3166 alpha-2) and visaType are required"})
		return
	}

	report, err := h.Service.FindAvailableSlots(c.Request.Context(), country, visaType, c.Query("consulate"))
	if err != nil {
		respondError(c, err, "Failed to find slots")
		return
	}
	c.JSON(http.StatusOK, report)
}

// BookHandler handles POST /api/appointments/book. A failed booking is
// still a 200 with success=false and the attempt trail.
func (h *AppointmentHandler) BookHandler(c *gin.Context) {
	var input booking.BookPayload
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if input.Request.RequestID == "" {
		input.Request.RequestID = c.GetString("requestID")
	}

	result, err := h.Service.BookAppointment(c.Request.Context(), input.Request, input.ResolvedOptions())
	if err != nil {
		var verr *booking.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking request", "message": err.Error(), "fields": verr.Fields, "result": result})
			return
		}
		respondError(c, err, "Failed to book appointment")
		return
	}

	getLogger(c).Info("booking finished",
		zap.String("state", string(result.State)),
		zap.Bool("success", result.Success),
		zap.Int("attempts", len(result.Attempts)))
	c.JSON(http.StatusOK, result)
}

// GetResultHandler handles GET /api/appointments/results/:requestId.
func (h *AppointmentHandler) GetResultHandler(c *gin.Context) {
	if h.Results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence unavailable"})
		return
	}
	result, err := h.Results.GetBookingResult(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		respondError(c, err, "Failed to fetch booking result")
		return
	}
	c.JSON(http.StatusOK, result)
}
