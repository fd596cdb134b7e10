package api

import (
	"net/http"

	"yogatherapy/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the instructor-facing rollups and report export.
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	exportService    service.ExportService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService service.AnalyticsService, exportService service.ExportService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		exportService:    exportService,
	}
}

type ExportRequest struct {
	Report string `json:"report" binding:"required"`
	Format string `json:"format" binding:"required"`
}

// Overview returns the practice-wide summary stats.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	stats, err := h.analyticsService.Overview(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PainTrend returns the trailing weekly pain averages.
func (h *AnalyticsHandler) PainTrend(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	trend, err := h.analyticsService.PainTrend(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

// TherapyTypes returns the per-category rollup.
func (h *AnalyticsHandler) TherapyTypes(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	rollup, err := h.analyticsService.TherapyTypeRollup(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}

// PatientProgress returns the per-patient progress table.
func (h *AnalyticsHandler) PatientProgress(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	rows, err := h.analyticsService.PatientProgressRollup(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Export snapshots a rollup to object storage and returns a download URL.
func (h *AnalyticsHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	result, err := h.exportService.ExportReport(c.Request.Context(), principal.UserID, req.Report, req.Format)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
