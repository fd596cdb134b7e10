package api

import (
	"net/http"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionHandler exposes session recording and history. Patients act on
// their own record; instructors act on any patient they manage.
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- DTOs ---

type RecordSessionRequest struct {
	PainBefore        *int   `json:"painBefore" binding:"required"`
	PainAfter         *int   `json:"painAfter" binding:"required"`
	MoodBefore        string `json:"moodBefore"`
	MoodAfter         string `json:"moodAfter"`
	Comment           string `json:"comment" binding:"required"`
	DurationMinutes   int    `json:"durationMinutes" binding:"required"`
	PosturesCompleted int    `json:"posturesCompleted"`
	PosturesSkipped   int    `json:"posturesSkipped"`
	Rating            *int   `json:"rating"`
}

type SessionFeedbackRequest struct {
	Comment *string `json:"comment"`
	Rating  *int    `json:"rating"`
}

type SessionResponse struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patientId"`
	SeriesID          string    `json:"seriesId"`
	SessionNumber     int       `json:"sessionNumber"`
	PainBefore        int       `json:"painBefore"`
	PainAfter         int       `json:"painAfter"`
	PainImprovement   int       `json:"painImprovement"`
	MoodBefore        string    `json:"moodBefore,omitempty"`
	MoodAfter         string    `json:"moodAfter,omitempty"`
	Comment           string    `json:"comment"`
	DurationMinutes   int       `json:"durationMinutes"`
	PosturesCompleted int       `json:"posturesCompleted"`
	PosturesSkipped   int       `json:"posturesSkipped"`
	Rating            *int      `json:"rating,omitempty"`
	CompletedAt       time.Time `json:"completedAt"`
}

type RecordSessionResponse struct {
	Session  SessionResponse `json:"session"`
	Progress domain.Progress `json:"progress"`
}

type ProgressResponse struct {
	Patient  PatientResponse `json:"patient"`
	Series   *SeriesResponse `json:"series,omitempty"`
	Progress domain.Progress `json:"progress"`
}

func mapSessionToResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:                s.ID.Hex(),
		PatientID:         s.PatientID.Hex(),
		SeriesID:          s.SeriesID.Hex(),
		SessionNumber:     s.SessionNumber,
		PainBefore:        s.PainBefore,
		PainAfter:         s.PainAfter,
		PainImprovement:   s.PainImprovement(),
		MoodBefore:        s.MoodBefore,
		MoodAfter:         s.MoodAfter,
		Comment:           s.Comment,
		DurationMinutes:   s.DurationMinutes,
		PosturesCompleted: s.PosturesCompleted,
		PosturesSkipped:   s.PosturesSkipped,
		Rating:            s.Rating,
		CompletedAt:       s.CompletedAt,
	}
}

func mapSessionInput(req RecordSessionRequest) service.SessionInput {
	input := service.SessionInput{
		MoodBefore:        req.MoodBefore,
		MoodAfter:         req.MoodAfter,
		Comment:           req.Comment,
		DurationMinutes:   req.DurationMinutes,
		PosturesCompleted: req.PosturesCompleted,
		PosturesSkipped:   req.PosturesSkipped,
		Rating:            req.Rating,
	}
	if req.PainBefore != nil {
		input.PainBefore = *req.PainBefore
	}
	if req.PainAfter != nil {
		input.PainAfter = *req.PainAfter
	}
	return input
}

// resolvePatientID determines which patient the request targets: the
// explicit path parameter on instructor routes, or the principal's own
// linked record on patient routes.
func (h *SessionHandler) resolvePatientID(c *gin.Context, principal service.Principal) (primitive.ObjectID, bool) {
	if raw := c.Param("patientId"); raw != "" {
		return pathObjectID(c, "patientId")
	}
	patient, err := h.sessionService.ResolveOwnPatient(c.Request.Context(), principal.UserID)
	if err != nil {
		respondDomainError(c, err)
		return primitive.NilObjectID, false
	}
	return patient.ID, true
}

// --- Handler Methods ---

// RecordSession validates and persists one completed session.
func (h *SessionHandler) RecordSession(c *gin.Context) {
	var req RecordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	patientID, ok := h.resolvePatientID(c, principal)
	if !ok {
		return
	}

	recorded, err := h.sessionService.RecordSession(c.Request.Context(), principal, patientID, mapSessionInput(req))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RecordSessionResponse{
		Session:  mapSessionToResponse(recorded.Session),
		Progress: recorded.Progress,
	})
}

// ListSessions returns the target patient's session history.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	patientID, ok := h.resolvePatientID(c, principal)
	if !ok {
		return
	}

	sessions, err := h.sessionService.GetSessionsForPatient(c.Request.Context(), principal, patientID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = mapSessionToResponse(&sessions[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetProgress returns the target patient's derived progress.
func (h *SessionHandler) GetProgress(c *gin.Context) {
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	patientID, ok := h.resolvePatientID(c, principal)
	if !ok {
		return
	}

	patient, series, progress, err := h.sessionService.GetProgress(c.Request.Context(), principal, patientID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	resp := ProgressResponse{
		Patient:  mapPatientToResponse(patient),
		Progress: progress,
	}
	if series != nil {
		sr := mapSeriesToResponse(series)
		resp.Series = &sr
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateSessionFeedback amends comment/rating on an existing session.
func (h *SessionHandler) UpdateSessionFeedback(c *gin.Context) {
	var req SessionFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	principal, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.sessionService.UpdateSessionFeedback(c.Request.Context(), principal, sessionID, req.Comment, req.Rating)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSessionToResponse(session))
}
