package service

import (
	"context"
	"errors"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/notification"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AssignmentService binds a patient to exactly one active series.
type AssignmentService interface {
	// AssignSeries binds the series to the patient and resets the current
	// session counter to zero. Progress under any previous series is
	// abandoned; its session rows remain as history and the lifetime
	// counter keeps its value.
	AssignSeries(ctx context.Context, instructorID, patientID, seriesID primitive.ObjectID) (*domain.Patient, error)

	// UnassignSeries clears the assignment and resets the counter. Session
	// history is untouched.
	UnassignSeries(ctx context.Context, instructorID, patientID primitive.ObjectID) (*domain.Patient, error)
}

type assignmentService struct {
	patientRepo repository.PatientRepository
	seriesRepo  repository.SeriesRepository
	notifier    notification.Notifier
	log         *zap.SugaredLogger
}

// NewAssignmentService creates a new instance of assignmentService.
func NewAssignmentService(
	patientRepo repository.PatientRepository,
	seriesRepo repository.SeriesRepository,
	notifier notification.Notifier,
	log *zap.SugaredLogger,
) AssignmentService {
	return &assignmentService{
		patientRepo: patientRepo,
		seriesRepo:  seriesRepo,
		notifier:    notifier,
		log:         log,
	}
}

// AssignSeries implements the series assignment rules: both entities must
// exist, be active, and belong to the same instructor; the series must be
// well-formed (postures present, positive session target).
func (s *assignmentService) AssignSeries(ctx context.Context, instructorID, patientID, seriesID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.loadOwnedPatient(ctx, instructorID, patientID)
	if err != nil {
		return nil, err
	}

	series, err := s.seriesRepo.GetByID(ctx, seriesID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("series not found")
		}
		return nil, err
	}
	if series.InstructorID != instructorID {
		return nil, domain.NewNotFoundError("series not found")
	}

	if len(series.Postures) == 0 {
		return nil, domain.NewConflictError("series has no postures and cannot be assigned")
	}
	if series.TotalSessions < 1 {
		return nil, domain.NewConflictError("series has no session target and cannot be assigned")
	}

	if err := s.patientRepo.SetAssignedSeries(ctx, patient.ID, &series.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}

	// Fire-and-forget; a notification failure never unwinds the assignment.
	if err := s.notifier.SeriesAssigned(ctx, notification.SeriesAssignedEvent{
		PatientID: patient.ID.Hex(),
		SeriesID:  series.ID.Hex(),
	}); err != nil {
		s.log.Warnw("series assigned notification failed", "patientId", patient.ID.Hex(), "error", err)
	}

	patient.AssignedSeriesID = &series.ID
	patient.CurrentSession = 0
	return patient, nil
}

// UnassignSeries clears the current assignment.
func (s *assignmentService) UnassignSeries(ctx context.Context, instructorID, patientID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.loadOwnedPatient(ctx, instructorID, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.patientRepo.SetAssignedSeries(ctx, patient.ID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}

	patient.AssignedSeriesID = nil
	patient.CurrentSession = 0
	return patient, nil
}

func (s *assignmentService) loadOwnedPatient(ctx context.Context, instructorID, patientID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}
	// Inactive and cross-instructor patients are treated as missing.
	if !patient.IsActive || patient.InstructorID != instructorID {
		return nil, domain.NewNotFoundError("patient not found")
	}
	return patient, nil
}
