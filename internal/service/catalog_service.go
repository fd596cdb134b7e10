package service

import (
	"context"
	"errors"
	"fmt"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostureInput carries one posture definition for series authoring.
type PostureInput struct {
	Name            string
	Instructions    string
	DurationMinutes int
}

// SeriesInput carries the authorable fields of a series.
type SeriesInput struct {
	Name          string
	Description   string
	TherapyType   string
	Difficulty    string
	TotalSessions int
	Postures      []PostureInput
}

// CatalogService manages the program catalog: instructor-authored series
// definitions. Read-heavy; structural mutation is blocked while any active
// patient is assigned.
type CatalogService interface {
	CreateSeries(ctx context.Context, instructorID primitive.ObjectID, input SeriesInput) (*domain.Series, error)
	GetSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID) (*domain.Series, error)
	ListSeries(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Series, error)
	UpdateSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID, input SeriesInput) (*domain.Series, error)
	DeleteSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID) error
}

type catalogService struct {
	seriesRepo  repository.SeriesRepository
	patientRepo repository.PatientRepository
}

// NewCatalogService creates a new instance of catalogService.
func NewCatalogService(seriesRepo repository.SeriesRepository, patientRepo repository.PatientRepository) CatalogService {
	return &catalogService{
		seriesRepo:  seriesRepo,
		patientRepo: patientRepo,
	}
}

// validateSeriesInput collects every violated constraint.
func validateSeriesInput(input SeriesInput) error {
	var violations []domain.FieldViolation
	if input.Name == "" {
		violations = append(violations, domain.FieldViolation{Field: "name", Message: "is required"})
	}
	if input.TherapyType == "" {
		violations = append(violations, domain.FieldViolation{Field: "therapyType", Message: "is required"})
	}
	if input.TotalSessions < 1 {
		violations = append(violations, domain.FieldViolation{Field: "totalSessions", Message: "must be at least 1"})
	}
	if len(input.Postures) == 0 {
		violations = append(violations, domain.FieldViolation{Field: "postures", Message: "at least one posture is required"})
	}
	for i, p := range input.Postures {
		if p.Name == "" {
			violations = append(violations, domain.FieldViolation{
				Field:   fmt.Sprintf("postures[%d].name", i),
				Message: "is required",
			})
		}
		if p.DurationMinutes < domain.MinPostureDuration || p.DurationMinutes > domain.MaxPostureDuration {
			violations = append(violations, domain.FieldViolation{
				Field:   fmt.Sprintf("postures[%d].durationMinutes", i),
				Message: fmt.Sprintf("must be between %d and %d", domain.MinPostureDuration, domain.MaxPostureDuration),
			})
		}
	}
	if len(violations) > 0 {
		return domain.NewValidationError(violations...)
	}
	return nil
}

func buildPostures(inputs []PostureInput) []domain.Posture {
	postures := make([]domain.Posture, len(inputs))
	for i, p := range inputs {
		postures[i] = domain.Posture{
			Name:            p.Name,
			Instructions:    p.Instructions,
			DurationMinutes: p.DurationMinutes,
			Sequence:        i + 1,
		}
	}
	return postures
}

// CreateSeries authors a new series for the instructor.
func (s *catalogService) CreateSeries(ctx context.Context, instructorID primitive.ObjectID, input SeriesInput) (*domain.Series, error) {
	if instructorID == primitive.NilObjectID {
		return nil, errors.New("instructor ID is required")
	}
	if err := validateSeriesInput(input); err != nil {
		return nil, err
	}

	series := &domain.Series{
		InstructorID:  instructorID,
		Name:          input.Name,
		Description:   input.Description,
		TherapyType:   input.TherapyType,
		Difficulty:    input.Difficulty,
		Postures:      buildPostures(input.Postures),
		TotalSessions: input.TotalSessions,
	}

	seriesID, err := s.seriesRepo.Create(ctx, series)
	if err != nil {
		return nil, err
	}
	return s.seriesRepo.GetByID(ctx, seriesID)
}

// GetSeries retrieves one series, scoped to its owning instructor.
func (s *catalogService) GetSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID) (*domain.Series, error) {
	series, err := s.seriesRepo.GetByID(ctx, seriesID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("series not found")
		}
		return nil, err
	}
	if series.InstructorID != instructorID {
		// Cross-owner reads look identical to missing rows.
		return nil, domain.NewNotFoundError("series not found")
	}
	return series, nil
}

// ListSeries retrieves all series authored by the instructor.
func (s *catalogService) ListSeries(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Series, error) {
	return s.seriesRepo.GetByInstructorID(ctx, instructorID)
}

// UpdateSeries rewrites a series definition. Fails with a conflict while
// any active patient is assigned to it; a frozen series must first have all
// assignments cleared.
func (s *catalogService) UpdateSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID, input SeriesInput) (*domain.Series, error) {
	if err := validateSeriesInput(input); err != nil {
		return nil, err
	}

	series, err := s.GetSeries(ctx, instructorID, seriesID)
	if err != nil {
		return nil, err
	}

	count, err := s.patientRepo.CountActiveBySeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.NewConflictError("series is assigned to %d active patient(s) and cannot be edited", count)
	}

	series.Name = input.Name
	series.Description = input.Description
	series.TherapyType = input.TherapyType
	series.Difficulty = input.Difficulty
	series.Postures = buildPostures(input.Postures)
	series.TotalSessions = input.TotalSessions

	if err := s.seriesRepo.Update(ctx, series); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("series not found")
		}
		return nil, err
	}
	return series, nil
}

// DeleteSeries removes a series with the same in-use guard as UpdateSeries.
// Session history referencing the series is retained; it is a weak
// reference.
func (s *catalogService) DeleteSeries(ctx context.Context, instructorID, seriesID primitive.ObjectID) error {
	if _, err := s.GetSeries(ctx, instructorID, seriesID); err != nil {
		return err
	}

	count, err := s.patientRepo.CountActiveBySeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.NewConflictError("series is assigned to %d active patient(s) and cannot be deleted", count)
	}

	if err := s.seriesRepo.Delete(ctx, seriesID, instructorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewNotFoundError("series not found")
		}
		return err
	}
	return nil
}
