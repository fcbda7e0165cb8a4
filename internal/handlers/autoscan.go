package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Auto-scan state
// @Description  Phase, interval, next run and HH:MM:SS countdown of the periodic scan.
// @Tags         autoscan
// @Produce      json
// @Success      200  {object}  models.AutoScanState
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/autoscan [get]
// @Security     BearerAuth
func (h *Handler) getAutoScan(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Scanner.AutoState())
}

// @Summary      Enable auto-scan
// @Description  Arms the timer one interval from now. Enabling twice keeps the existing schedule.
// @Tags         autoscan
// @Produce      json
// @Success      200  {object}  models.AutoScanState
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/autoscan/enable [post]
// @Security     BearerAuth
func (h *Handler) enableAutoScan(c *gin.Context) {
	st := h.services.Scanner.EnableAuto()
	if h.log != nil {
		h.log.Infow("autoscan_enable_requested", "next_run_at", st.NextRunAt)
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Disable auto-scan
// @Description  Cancels the pending run. A scan already running is allowed to finish.
// @Tags         autoscan
// @Produce      json
// @Success      200  {object}  models.AutoScanState
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/autoscan/disable [post]
// @Security     BearerAuth
func (h *Handler) disableAutoScan(c *gin.Context) {
	st := h.services.Scanner.DisableAuto()
	if h.log != nil {
		h.log.Infow("autoscan_disable_requested", "phase", st.Phase)
	}
	c.JSON(http.StatusOK, st)
}
