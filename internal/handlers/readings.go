package handlers

import (
	"errors"
	"net/http"

	"harvest_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Current sensor reading
// @Description  Latest soil and environment values pushed by the sensor feed.
// @Tags         readings
// @Produce      json
// @Success      200  {object}  models.Reading
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /api/v1/readings/current [get]
// @Security     BearerAuth
func (h *Handler) getCurrentReading(c *gin.Context) {
	r, err := h.services.Readings.GetCurrent()
	if err != nil {
		if errors.Is(err, service.ErrNoReading) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load reading", "reading_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, r)
}
