package handlers

import (
	"io"
	"net/http"

	"visaflow/utils"

	"github.com/gin-gonic/gin"
)

// HybridHandler exposes the action registry over HTTP.
type HybridHandler struct {
	Service HybridAPI
}

// ActionsHandler handles GET /api/hybrid/actions.
func (h *HybridHandler) ActionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": h.Service.Actions()})
}

// DispatchHandler handles POST /api/hybrid/:action.
func (h *HybridHandler) DispatchHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	out, err := h.Service.Dispatch(c.Request.Context(), c.Param("action"), body)
	if err != nil {
		respondError(c, err, "Hybrid action failed")
		return
	}
	c.JSON(http.StatusOK, out)
}
