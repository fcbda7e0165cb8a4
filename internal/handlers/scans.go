package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"harvest_monitor/internal/models"
	"harvest_monitor/internal/repository"
	"harvest_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errScanFailed    = "scan failed"
	errCaptureFailed = "failed to capture image"
	errScanLoad      = "failed to load scan"
	errScanNotFound  = "scan not found"
	errScanNoImage   = "scan has no image"
	errScanList      = "failed to list scans"
	errLimitInvalid  = "invalid 'limit'; use 1-500"

	defaultScanLimit = 50
	maxScanLimit     = 500
)

// scanErrorStatus maps orchestrator errors to HTTP codes: a held gate is a
// conflict, a camera failure is an upstream failure, anything else is ours.
func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrCaptureFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondScanError(c *gin.Context, userMsg, logKey string, err error) {
	code := scanErrorStatus(err)
	if code == http.StatusConflict {
		c.JSON(code, gin.H{"error": service.ErrScanInProgress.Error()})
		return
	}
	h.logAndJSONError(c, code, userMsg, logKey, err)
}

// @Summary      Start a manual scan
// @Description  Captures an image, asks the vision model for a harvest judgment and stores the result. The analysis is omitted when the model is unavailable.
// @Tags         scans
// @Produce      json
// @Success      201  {object}  models.ScanRecord
// @Failure      401  {object}  errorResponse
// @Failure      409  {object}  errorResponse  "another scan is in progress"
// @Failure      500  {object}  errorResponse
// @Failure      502  {object}  errorResponse  "camera unavailable"
// @Router       /api/v1/scans [post]
// @Security     BearerAuth
func (h *Handler) startScan(c *gin.Context) {
	rec, err := h.services.Scanner.Scan(c.Request.Context(), models.TriggerManual)
	if err != nil {
		h.respondScanError(c, errScanFailed, "scan_failed", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// @Summary      List scans
// @Description  Stored scans newest first, optionally for one date. Image bytes are not included; fetch them from /api/v1/scans/{id}/image.
// @Tags         scans
// @Produce      json
// @Param        date   query     string  false  "Calendar date (YYYY-MM-DD)"  example(2025-08-01)
// @Param        limit  query     int     false  "Maximum number of scans (1-500, default 50)"
// @Success      200    {object}  map[string]interface{}  "count, scans"
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Failure      500    {object}  errorResponse
// @Router       /api/v1/scans [get]
// @Security     BearerAuth
func (h *Handler) listScans(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	limit := defaultScanLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxScanLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		limit = v
	}

	recs, err := h.services.History.List(c.Request.Context(), date, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errDateInvalid})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errScanList, "scan_list_failed", err, "date", date)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(recs),
		"scans": recs,
	})
}

// @Summary      Get a scan
// @Tags         scans
// @Produce      json
// @Param        id   path      string  true  "Scan ID"
// @Success      200  {object}  models.ScanRecord
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/v1/scans/{id} [get]
// @Security     BearerAuth
func (h *Handler) getScan(c *gin.Context) {
	rec, ok := h.loadScan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary      Get the image of a scan
// @Tags         scans
// @Produce      image/jpeg
// @Produce      image/png
// @Param        id   path  string  true  "Scan ID"
// @Success      200  {file}    binary
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/scans/{id}/image [get]
// @Security     BearerAuth
func (h *Handler) getScanImage(c *gin.Context) {
	rec, ok := h.loadScan(c)
	if !ok {
		return
	}
	if rec.Image == nil || len(rec.Image.Data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": errScanNoImage})
		return
	}
	mime := rec.Image.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Data(http.StatusOK, mime, rec.Image.Data)
}

func (h *Handler) loadScan(c *gin.Context) (models.ScanRecord, bool) {
	id := c.Param("id")
	rec, err := h.services.History.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errScanNotFound})
			return models.ScanRecord{}, false
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errScanLoad, "scan_get_failed", err, "scan_id", id)
		return models.ScanRecord{}, false
	}
	return rec, true
}

// @Summary      Capture an image only
// @Description  Takes a picture without analysis or persistence. Shares the in-flight gate with scans.
// @Tags         scans
// @Produce      json
// @Success      200  {object}  models.EncodedImage
// @Failure      401  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /api/v1/capture [post]
// @Security     BearerAuth
func (h *Handler) capture(c *gin.Context) {
	img, err := h.services.Scanner.CaptureOnly(c.Request.Context())
	if err != nil {
		h.respondScanError(c, errCaptureFailed, "capture_failed", err)
		return
	}
	c.JSON(http.StatusOK, img)
}
