package handlers

import (
	"errors"
	"net/http"
	"strings"

	"harvest_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const errDateInvalid = "invalid 'date'; use YYYY-MM-DD"

// @Summary      Scan history of one day
// @Description  Notifications for the given date, newest first. Without a date the most recent day with scans is returned.
// @Tags         history
// @Produce      json
// @Param        date  query     string  false  "Calendar date (YYYY-MM-DD)"  example(2025-08-01)
// @Success      200   {object}  models.NotificationView
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/v1/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	view, err := h.services.Notifications.View(date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errDateInvalid})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load history", "history_view_failed", err, "date", date)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary      Dates with scans
// @Tags         history
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, dates"
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/history/dates [get]
// @Security     BearerAuth
func (h *Handler) getHistoryDates(c *gin.Context) {
	dates := h.services.Notifications.Dates()
	c.JSON(http.StatusOK, gin.H{
		"count": len(dates),
		"dates": dates,
	})
}
