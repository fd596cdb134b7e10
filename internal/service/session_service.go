package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/notification"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Principal is the authenticated caller as handed over by the auth layer.
// Role claims are trusted.
type Principal struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

// SessionInput carries the recordable fields of one completed session.
type SessionInput struct {
	PainBefore        int
	PainAfter         int
	MoodBefore        string
	MoodAfter         string
	Comment           string
	DurationMinutes   int
	PosturesCompleted int
	PosturesSkipped   int
	Rating            *int
}

// RecordedSession is the result of a successful recording: the persisted
// row plus the recomputed progress.
type RecordedSession struct {
	Session  *domain.Session `json:"session"`
	Progress domain.Progress `json:"progress"`
}

// SessionService records completed sessions and serves session history.
// Recording is the one operation in the system with an all-or-nothing
// requirement: the session insert and the patient counter advance commit
// together or not at all, serialized per patient.
type SessionService interface {
	RecordSession(ctx context.Context, requester Principal, patientID primitive.ObjectID, input SessionInput) (*RecordedSession, error)
	UpdateSessionFeedback(ctx context.Context, requester Principal, sessionID primitive.ObjectID, comment *string, rating *int) (*domain.Session, error)
	GetSessionsForPatient(ctx context.Context, requester Principal, patientID primitive.ObjectID) ([]domain.Session, error)
	GetProgress(ctx context.Context, requester Principal, patientID primitive.ObjectID) (*domain.Patient, *domain.Series, domain.Progress, error)

	// ResolveOwnPatient maps a patient login to its patient record.
	ResolveOwnPatient(ctx context.Context, userID primitive.ObjectID) (*domain.Patient, error)
}

type sessionService struct {
	patientRepo repository.PatientRepository
	seriesRepo  repository.SeriesRepository
	sessionRepo repository.SessionRepository
	tx          repository.TxRunner
	notifier    notification.Notifier
	log         *zap.SugaredLogger
}

// NewSessionService creates a new instance of sessionService.
func NewSessionService(
	patientRepo repository.PatientRepository,
	seriesRepo repository.SeriesRepository,
	sessionRepo repository.SessionRepository,
	tx repository.TxRunner,
	notifier notification.Notifier,
	log *zap.SugaredLogger,
) SessionService {
	return &sessionService{
		patientRepo: patientRepo,
		seriesRepo:  seriesRepo,
		sessionRepo: sessionRepo,
		tx:          tx,
		notifier:    notifier,
		log:         log,
	}
}

// validateSessionInput collects every violated constraint, not just the
// first one found.
func validateSessionInput(input SessionInput) error {
	var violations []domain.FieldViolation
	if input.PainBefore < domain.MinPainScore || input.PainBefore > domain.MaxPainScore {
		violations = append(violations, domain.FieldViolation{
			Field:   "painBefore",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinPainScore, domain.MaxPainScore),
		})
	}
	if input.PainAfter < domain.MinPainScore || input.PainAfter > domain.MaxPainScore {
		violations = append(violations, domain.FieldViolation{
			Field:   "painAfter",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinPainScore, domain.MaxPainScore),
		})
	}
	if len(input.Comment) < domain.MinCommentLength {
		violations = append(violations, domain.FieldViolation{
			Field:   "comment",
			Message: fmt.Sprintf("must be at least %d characters", domain.MinCommentLength),
		})
	}
	if input.Rating != nil && (*input.Rating < domain.MinRating || *input.Rating > domain.MaxRating) {
		violations = append(violations, domain.FieldViolation{
			Field:   "rating",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating),
		})
	}
	if input.DurationMinutes < 0 {
		violations = append(violations, domain.FieldViolation{Field: "durationMinutes", Message: "must not be negative"})
	}
	if input.PosturesCompleted < 0 {
		violations = append(violations, domain.FieldViolation{Field: "posturesCompleted", Message: "must not be negative"})
	}
	if input.PosturesSkipped < 0 {
		violations = append(violations, domain.FieldViolation{Field: "posturesSkipped", Message: "must not be negative"})
	}
	if len(violations) > 0 {
		return domain.NewValidationError(violations...)
	}
	return nil
}

// RecordSession validates and persists one completed session, advancing the
// patient's progress atomically.
func (s *sessionService) RecordSession(ctx context.Context, requester Principal, patientID primitive.ObjectID, input SessionInput) (*RecordedSession, error) {
	// Validation and conflict failures happen before any write.
	if err := validateSessionInput(input); err != nil {
		return nil, err
	}

	patient, err := s.authorizedPatient(ctx, requester, patientID)
	if err != nil {
		return nil, err
	}

	if !patient.HasAssignedSeries() {
		return nil, domain.NewConflictError("no series assigned")
	}

	series, err := s.seriesRepo.GetByID(ctx, *patient.AssignedSeriesID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("assigned series not found")
		}
		return nil, err
	}

	if patient.CurrentSession >= series.TotalSessions {
		return nil, domain.NewConflictError("series already completed")
	}

	sessionNumber := patient.CurrentSession + 1
	session := &domain.Session{
		PatientID:         patient.ID,
		SeriesID:          series.ID,
		InstructorID:      patient.InstructorID,
		SessionNumber:     sessionNumber,
		PainBefore:        input.PainBefore,
		PainAfter:         input.PainAfter,
		MoodBefore:        input.MoodBefore,
		MoodAfter:         input.MoodAfter,
		Comment:           input.Comment,
		DurationMinutes:   input.DurationMinutes,
		PosturesCompleted: input.PosturesCompleted,
		PosturesSkipped:   input.PosturesSkipped,
		Rating:            input.Rating,
		CompletedAt:       time.Now().UTC(),
	}

	// The counter advance is conditioned on the value read above, so two
	// concurrent recorders for the same patient cannot both pass: the loser
	// aborts here and the whole transaction rolls back. Conflicts surface
	// to the caller instead of being retried; a retry could double-count.
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.patientRepo.AdvanceProgress(txCtx, patient.ID, series.ID, patient.CurrentSession); err != nil {
			return err
		}
		sessionID, err := s.sessionRepo.Create(txCtx, session)
		if err != nil {
			return err
		}
		session.ID = sessionID
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleWrite) || errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewConcurrencyError("another session was recorded for this patient at the same time; please try again")
		}
		return nil, err
	}

	// Best-effort side effect: a notification failure is logged, never
	// propagated — the session write above is already committed.
	if err := s.notifier.SessionCompleted(ctx, notification.SessionCompletedEvent{
		PatientID:       patient.ID.Hex(),
		SessionID:       session.ID.Hex(),
		SessionNumber:   sessionNumber,
		PainImprovement: session.PainImprovement(),
	}); err != nil {
		s.log.Warnw("session completed notification failed",
			"patientId", patient.ID.Hex(),
			"sessionId", session.ID.Hex(),
			"error", err,
		)
	}

	return &RecordedSession{
		Session:  session,
		Progress: domain.ComputeProgress(sessionNumber, series.TotalSessions),
	}, nil
}

// UpdateSessionFeedback amends comment and/or rating on an existing
// session. Structural fields never change after creation.
func (s *sessionService) UpdateSessionFeedback(ctx context.Context, requester Principal, sessionID primitive.ObjectID, comment *string, rating *int) (*domain.Session, error) {
	var violations []domain.FieldViolation
	if comment != nil && len(*comment) < domain.MinCommentLength {
		violations = append(violations, domain.FieldViolation{
			Field:   "comment",
			Message: fmt.Sprintf("must be at least %d characters", domain.MinCommentLength),
		})
	}
	if rating != nil && (*rating < domain.MinRating || *rating > domain.MaxRating) {
		violations = append(violations, domain.FieldViolation{
			Field:   "rating",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating),
		})
	}
	if len(violations) > 0 {
		return nil, domain.NewValidationError(violations...)
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("session not found")
		}
		return nil, err
	}

	if _, err := s.authorizedPatient(ctx, requester, session.PatientID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.UpdateFeedback(ctx, sessionID, session.PatientID, comment, rating)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("session not found")
		}
		return nil, err
	}
	return updated, nil
}

// GetSessionsForPatient returns the patient's session history, oldest
// first. Shared by the instructor and patient surfaces.
func (s *sessionService) GetSessionsForPatient(ctx context.Context, requester Principal, patientID primitive.ObjectID) ([]domain.Session, error) {
	if _, err := s.authorizedPatient(ctx, requester, patientID); err != nil {
		return nil, err
	}
	return s.sessionRepo.GetByPatientID(ctx, patientID)
}

// GetProgress returns the patient, their assigned series (nil when none)
// and the derived progress.
func (s *sessionService) GetProgress(ctx context.Context, requester Principal, patientID primitive.ObjectID) (*domain.Patient, *domain.Series, domain.Progress, error) {
	patient, err := s.authorizedPatient(ctx, requester, patientID)
	if err != nil {
		return nil, nil, domain.Progress{}, err
	}
	if !patient.HasAssignedSeries() {
		return patient, nil, domain.Progress{}, nil
	}

	series, err := s.seriesRepo.GetByID(ctx, *patient.AssignedSeriesID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.Progress{}, domain.NewNotFoundError("assigned series not found")
		}
		return nil, nil, domain.Progress{}, err
	}
	return patient, series, domain.ComputeProgress(patient.CurrentSession, series.TotalSessions), nil
}

// ResolveOwnPatient maps a patient login to its linked patient record.
func (s *sessionService) ResolveOwnPatient(ctx context.Context, userID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("no patient record linked to this account")
		}
		return nil, err
	}
	return patient, nil
}

// authorizedPatient loads the patient and checks that the requester may act
// on it: the owning instructor, or the patient's own linked account.
// Missing, inactive and foreign patients are indistinguishable to the
// caller.
func (s *sessionService) authorizedPatient(ctx context.Context, requester Principal, patientID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}
	if !patient.IsActive {
		return nil, domain.NewNotFoundError("patient not found")
	}

	switch requester.Role {
	case domain.RoleInstructor:
		if patient.InstructorID == requester.UserID {
			return patient, nil
		}
	case domain.RolePatient:
		if patient.UserID != nil && *patient.UserID == requester.UserID {
			return patient, nil
		}
	}
	return nil, domain.NewNotFoundError("patient not found")
}
