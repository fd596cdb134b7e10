package api

import (
	"net/http"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PatientHandler exposes the instructor's patient roster and series
// assignment operations.
type PatientHandler struct {
	instructorService service.InstructorService
	assignmentService service.AssignmentService
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(
	instructorService service.InstructorService,
	assignmentService service.AssignmentService,
) *PatientHandler {
	return &PatientHandler{
		instructorService: instructorService,
		assignmentService: assignmentService,
	}
}

// --- DTOs ---

type PatientRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	Age         *int   `json:"age" binding:"omitempty,min=0,max=150"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	HealthNotes string `json:"healthNotes"`
}

type LinkAccountRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type AssignSeriesRequest struct {
	SeriesID string `json:"seriesId" binding:"required"`
}

type PatientResponse struct {
	ID                     string    `json:"id"`
	InstructorID           string    `json:"instructorId"`
	UserID                 *string   `json:"userId,omitempty"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email,omitempty"`
	Age                    *int      `json:"age,omitempty"`
	Gender                 string    `json:"gender,omitempty"`
	Phone                  string    `json:"phone,omitempty"`
	HealthNotes            string    `json:"healthNotes,omitempty"`
	AssignedSeriesID       *string   `json:"assignedSeriesId,omitempty"`
	CurrentSession         int       `json:"currentSession"`
	TotalSessionsCompleted int       `json:"totalSessionsCompleted"`
	IsActive               bool      `json:"isActive"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

func mapPatientToResponse(p *domain.Patient) PatientResponse {
	resp := PatientResponse{
		ID:                     p.ID.Hex(),
		InstructorID:           p.InstructorID.Hex(),
		Name:                   p.Name,
		Email:                  p.Email,
		Age:                    p.Age,
		Gender:                 p.Gender,
		Phone:                  p.Phone,
		HealthNotes:            p.HealthNotes,
		CurrentSession:         p.CurrentSession,
		TotalSessionsCompleted: p.TotalSessionsCompleted,
		IsActive:               p.IsActive,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if p.UserID != nil {
		id := p.UserID.Hex()
		resp.UserID = &id
	}
	if p.AssignedSeriesID != nil {
		id := p.AssignedSeriesID.Hex()
		resp.AssignedSeriesID = &id
	}
	return resp
}

func mapPatientInput(req PatientRequest) service.PatientInput {
	return service.PatientInput{
		Name:        req.Name,
		Email:       req.Email,
		Age:         req.Age,
		Gender:      req.Gender,
		Phone:       req.Phone,
		HealthNotes: req.HealthNotes,
	}
}

// --- Handler Methods ---

// AddPatient registers a new patient under the authenticated instructor.
func (h *PatientHandler) AddPatient(c *gin.Context) {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}

	patient, err := h.instructorService.AddPatient(c.Request.Context(), principal.UserID, mapPatientInput(req))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapPatientToResponse(patient))
}

// ListPatients returns the instructor's roster.
func (h *PatientHandler) ListPatients(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}

	patients, err := h.instructorService.ListPatients(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	responses := make([]PatientResponse, len(patients))
	for i := range patients {
		responses[i] = mapPatientToResponse(&patients[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetPatient returns one patient record.
func (h *PatientHandler) GetPatient(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}

	patient, err := h.instructorService.GetPatient(c.Request.Context(), principal.UserID, patientID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPatientToResponse(patient))
}

// UpdatePatient modifies patient demographics.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}

	patient, err := h.instructorService.UpdatePatient(c.Request.Context(), principal.UserID, patientID, mapPatientInput(req))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPatientToResponse(patient))
}

// DeactivatePatient soft-deletes a patient; history remains.
func (h *PatientHandler) DeactivatePatient(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}

	if err := h.instructorService.DeactivatePatient(c.Request.Context(), principal.UserID, patientID); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LinkAccount attaches a registered patient login to the patient record.
func (h *PatientHandler) LinkAccount(c *gin.Context) {
	var req LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}

	patient, err := h.instructorService.LinkPatientAccount(c.Request.Context(), principal.UserID, patientID, req.Email)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPatientToResponse(patient))
}

// AssignSeries binds a series to the patient and resets current progress.
func (h *PatientHandler) AssignSeries(c *gin.Context) {
	var req AssignSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}
	seriesID, err := primitive.ObjectIDFromHex(req.SeriesID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid seriesId format")
		return
	}

	patient, err := h.assignmentService.AssignSeries(c.Request.Context(), principal.UserID, patientID, seriesID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPatientToResponse(patient))
}

// UnassignSeries clears the patient's current series.
func (h *PatientHandler) UnassignSeries(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify instructor from token.")
		return
	}
	patientID, ok := pathObjectID(c, "patientId")
	if !ok {
		return
	}

	patient, err := h.assignmentService.UnassignSeries(c.Request.Context(), principal.UserID, patientID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPatientToResponse(patient))
}
