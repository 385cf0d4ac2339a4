package handlers

import (
	"net/http"
	"strconv"

	"visaflow/database/repository"
	"visaflow/services/booking"
	"visaflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MonitoringHandler controls the vacancy monitor.
type MonitoringHandler struct {
	Service HybridAPI
	Results repository.ResultsRepository
}

// StartHandler handles POST /api/monitoring/start.
func (h *MonitoringHandler) StartHandler(c *gin.Context) {
	var input booking.StartMonitoringPayload
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if len(input.Targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "message": "at least one target is required"})
		return
	}

	ids, err := h.Service.StartMonitoring(input.Targets, input.IntervalMinutes)
	if err != nil {
		respondError(c, err, "Failed to start monitoring")
		return
	}
	getLogger(c).Info("monitoring started", zap.Strings("targetIds", ids), zap.String("operatorID", c.GetString("operatorID")))
	c.JSON(http.StatusCreated, gin.H{"targetIds": ids})
}

// StopHandler handles DELETE /api/monitoring/:id.
func (h *MonitoringHandler) StopHandler(c *gin.Context) {
	id := c.Param("id")
	if err := h.Service.StopMonitoring(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to stop monitoring")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": id})
}

// StatusHandler handles GET /api/monitoring/status.
func (h *MonitoringHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.GetMonitoringStatus())
}

// AlertsHandler handles GET /api/monitoring/:id/alerts.
func (h *MonitoringHandler) AlertsHandler(c *gin.Context) {
	if h.Results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence unavailable"})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	alerts, err := h.Results.RecentAlerts(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err, "Failed to fetch alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}
