package api

import (
	"net/http"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// SeriesHandler exposes the program catalog to instructors.
type SeriesHandler struct {
	catalogService service.CatalogService
}

// NewSeriesHandler creates a new SeriesHandler.
func NewSeriesHandler(catalogService service.CatalogService) *SeriesHandler {
	return &SeriesHandler{catalogService: catalogService}
}

// --- DTOs ---

type PostureRequest struct {
	Name            string `json:"name" binding:"required"`
	Instructions    string `json:"instructions"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
}

type SeriesRequest struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	TherapyType   string           `json:"therapyType" binding:"required"`
	Difficulty    string           `json:"difficulty"`
	TotalSessions int              `json:"totalSessions" binding:"required"`
	Postures      []PostureRequest `json:"postures" binding:"required"`
}

type PostureResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Instructions    string `json:"instructions,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
	Sequence        int    `json:"sequence"`
}

type SeriesResponse struct {
	ID                       string            `json:"id"`
	InstructorID             string            `json:"instructorId"`
	Name                     string            `json:"name"`
	Description              string            `json:"description,omitempty"`
	TherapyType              string            `json:"therapyType"`
	Difficulty               string            `json:"difficulty,omitempty"`
	Postures                 []PostureResponse `json:"postures"`
	TotalSessions            int               `json:"totalSessions"`
	EstimatedDurationMinutes int               `json:"estimatedDurationMinutes"`
	CreatedAt                time.Time         `json:"createdAt"`
	UpdatedAt                time.Time         `json:"updatedAt"`
}

func mapSeriesToResponse(s *domain.Series) SeriesResponse {
	postures := make([]PostureResponse, len(s.Postures))
	for i, p := range s.Postures {
		postures[i] = PostureResponse{
			ID:              p.ID.Hex(),
			Name:            p.Name,
			Instructions:    p.Instructions,
			DurationMinutes: p.DurationMinutes,
			Sequence:        p.Sequence,
		}
	}
	return SeriesResponse{
		ID:                       s.ID.Hex(),
		InstructorID:             s.InstructorID.Hex(),
		Name:                     s.Name,
		Description:              s.Description,
		TherapyType:              s.TherapyType,
		Difficulty:               s.Difficulty,
		Postures:                 postures,
		TotalSessions:            s.TotalSessions,
		EstimatedDurationMinutes: s.EstimatedDurationMinutes(),
		CreatedAt:                s.CreatedAt,
		UpdatedAt:                s.UpdatedAt,
	}
}

func mapSeriesInput(req SeriesRequest) service.SeriesInput {
	postures := make([]service.PostureInput, len(req.Postures))
	for i, p := range req.Postures {
		postures[i] = service.PostureInput{
			Name:            p.Name,
			Instructions:    p.Instructions,
			DurationMinutes: p.DurationMinutes,
		}
	}
	return service.SeriesInput{
		Name:          req.Name,
		Description:   req.Description,
		TherapyType:   req.TherapyType,
		Difficulty:    req.Difficulty,
		TotalSessions: req.TotalSessions,
		Postures:      postures,
	}
}

// --- Handler Methods ---

// CreateSeries authors a new series for the authenticated instructor.
func (h *SeriesHandler) CreateSeries(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}

	series, err := h.catalogService.CreateSeries(c.Request.Context(), principal.UserID, mapSeriesInput(req))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapSeriesToResponse(series))
}

// ListSeries returns the instructor's catalog.
func (h *SeriesHandler) ListSeries(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}

	list, err := h.catalogService.ListSeries(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	responses := make([]SeriesResponse, len(list))
	for i := range list {
		responses[i] = mapSeriesToResponse(&list[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetSeries returns one series by ID.
func (h *SeriesHandler) GetSeries(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	seriesID, ok := pathObjectID(c, "seriesId")
	if !ok {
		return
	}

	series, err := h.catalogService.GetSeries(c.Request.Context(), principal.UserID, seriesID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSeriesToResponse(series))
}

// UpdateSeries rewrites a series definition. Conflicts while assigned.
func (h *SeriesHandler) UpdateSeries(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	seriesID, ok := pathObjectID(c, "seriesId")
	if !ok {
		return
	}

	series, err := h.catalogService.UpdateSeries(c.Request.Context(), principal.UserID, seriesID, mapSeriesInput(req))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSeriesToResponse(series))
}

// DeleteSeries removes a series. Conflicts while assigned.
func (h *SeriesHandler) DeleteSeries(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	seriesID, ok := pathObjectID(c, "seriesId")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteSeries(c.Request.Context(), principal.UserID, seriesID); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
