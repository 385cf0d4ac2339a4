package handlers

import (
	"net/http"

	"visaflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PartnerHandler exposes adapter status and administration.
type PartnerHandler struct {
	Service HybridAPI
}

// StatusHandler handles GET /api/partners/status.
func (h *PartnerHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.GetPartnersStatus())
}

type setEnabledInput struct {
	Enabled           *bool `json:"enabled" binding:"required"`
	LegalConfirmation *bool `json:"legalConfirmation"`
}

// SetEnabledHandler handles PUT /api/partners/:id/enabled.
func (h *PartnerHandler) SetEnabledHandler(c *gin.Context) {
	var input setEnabledInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	id := c.Param("id")
	if err := h.Service.SetAdapterEnabled(id, *input.Enabled, input.LegalConfirmation); err != nil {
		respondError(c, err, "Failed to update adapter")
		return
	}
	getLogger(c).Info("adapter updated", zap.String("adapterID", id), zap.Bool("enabled", *input.Enabled),
		zap.String("operatorID", c.GetString("operatorID")))
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *input.Enabled})
}

type reliabilityInput struct {
	Score *float64 `json:"score" binding:"required,gte=0,lte=100"`
}

// SetReliabilityHandler handles PUT /api/partners/:id/reliability.
func (h *PartnerHandler) SetReliabilityHandler(c *gin.Context) {
	var input reliabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	id := c.Param("id")
	if err := h.Service.UpdateReliability(id, *input.Score); err != nil {
		respondError(c, err, "Failed to update reliability")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "reliability": *input.Score})
}
