package service

import (
	"context"
	"errors"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PatientInput carries the instructor-editable demographic fields.
type PatientInput struct {
	Name        string
	Email       string
	Age         *int
	Gender      string
	Phone       string
	HealthNotes string
}

// InstructorService manages the instructor's patient roster. Therapy
// progress itself is owned by the assignment and session services.
type InstructorService interface {
	AddPatient(ctx context.Context, instructorID primitive.ObjectID, input PatientInput) (*domain.Patient, error)
	LinkPatientAccount(ctx context.Context, instructorID, patientID primitive.ObjectID, accountEmail string) (*domain.Patient, error)
	GetPatient(ctx context.Context, instructorID, patientID primitive.ObjectID) (*domain.Patient, error)
	ListPatients(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Patient, error)
	UpdatePatient(ctx context.Context, instructorID, patientID primitive.ObjectID, input PatientInput) (*domain.Patient, error)
	DeactivatePatient(ctx context.Context, instructorID, patientID primitive.ObjectID) error
}

type instructorService struct {
	userRepo    repository.UserRepository
	patientRepo repository.PatientRepository
}

// NewInstructorService creates a new instance of instructorService.
func NewInstructorService(userRepo repository.UserRepository, patientRepo repository.PatientRepository) InstructorService {
	return &instructorService{
		userRepo:    userRepo,
		patientRepo: patientRepo,
	}
}

// AddPatient registers a new patient record under the instructor.
func (s *instructorService) AddPatient(ctx context.Context, instructorID primitive.ObjectID, input PatientInput) (*domain.Patient, error) {
	if instructorID == primitive.NilObjectID {
		return nil, errors.New("instructor ID is required")
	}
	if input.Name == "" {
		return nil, domain.NewValidationError(domain.FieldViolation{Field: "name", Message: "is required"})
	}

	patient := &domain.Patient{
		InstructorID: instructorID,
		Name:         input.Name,
		Email:        input.Email,
		Age:          input.Age,
		Gender:       input.Gender,
		Phone:        input.Phone,
		HealthNotes:  input.HealthNotes,
	}

	patientID, err := s.patientRepo.Create(ctx, patient)
	if err != nil {
		return nil, err
	}
	return s.patientRepo.GetByID(ctx, patientID)
}

// LinkPatientAccount attaches a registered patient login to a patient
// record, so the patient can record their own sessions.
func (s *instructorService) LinkPatientAccount(ctx context.Context, instructorID, patientID primitive.ObjectID, accountEmail string) (*domain.Patient, error) {
	patient, err := s.GetPatient(ctx, instructorID, patientID)
	if err != nil {
		return nil, err
	}

	account, err := s.userRepo.GetByEmail(ctx, accountEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("no account registered for %s", accountEmail)
		}
		return nil, err
	}
	if !account.IsPatient() {
		return nil, domain.NewConflictError("account %s is not a patient account", accountEmail)
	}

	if err := s.patientRepo.LinkUser(ctx, patient.ID, account.ID); err != nil {
		return nil, err
	}
	patient.UserID = &account.ID
	return patient, nil
}

// GetPatient loads a patient record, scoped to its owning instructor.
func (s *instructorService) GetPatient(ctx context.Context, instructorID, patientID primitive.ObjectID) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}
	if patient.InstructorID != instructorID {
		return nil, domain.NewNotFoundError("patient not found")
	}
	return patient, nil
}

// ListPatients retrieves the instructor's roster, active and inactive.
func (s *instructorService) ListPatients(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Patient, error) {
	return s.patientRepo.GetByInstructorID(ctx, instructorID)
}

// UpdatePatient modifies demographic fields only.
func (s *instructorService) UpdatePatient(ctx context.Context, instructorID, patientID primitive.ObjectID, input PatientInput) (*domain.Patient, error) {
	patient, err := s.GetPatient(ctx, instructorID, patientID)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, domain.NewValidationError(domain.FieldViolation{Field: "name", Message: "is required"})
	}

	patient.Name = input.Name
	patient.Email = input.Email
	patient.Age = input.Age
	patient.Gender = input.Gender
	patient.Phone = input.Phone
	patient.HealthNotes = input.HealthNotes

	if err := s.patientRepo.UpdateDemographics(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("patient not found")
		}
		return nil, err
	}
	return patient, nil
}

// DeactivatePatient soft-deletes the patient; session history stays.
func (s *instructorService) DeactivatePatient(ctx context.Context, instructorID, patientID primitive.ObjectID) error {
	if err := s.patientRepo.Deactivate(ctx, patientID, instructorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewNotFoundError("patient not found")
		}
		return err
	}
	return nil
}
