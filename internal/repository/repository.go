package repository

import (
	"context"
	"time"

	"yogatherapy/backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer. Services map these onto the
// typed domain error taxonomy.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrStaleWrite   = RepositoryError("stale write: row changed since read")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxRunner executes fn atomically: every repository write performed through
// the ctx passed to fn either commits as a unit or rolls back as a unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for interacting with login accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// PatientRepository defines the interface for interacting with patient records.
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Patient, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Patient, error)
	GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Patient, error)
	UpdateDemographics(ctx context.Context, patient *domain.Patient) error
	LinkUser(ctx context.Context, patientID, userID primitive.ObjectID) error
	Deactivate(ctx context.Context, id, instructorID primitive.ObjectID) error

	// SetAssignedSeries binds (or, with nil, clears) the patient's series and
	// resets currentSession to zero. The lifetime counter is untouched.
	SetAssignedSeries(ctx context.Context, patientID primitive.ObjectID, seriesID *primitive.ObjectID) error

	// AdvanceProgress moves currentSession from fromSession to fromSession+1
	// and increments the lifetime counter, but only if the row still has
	// currentSession == fromSession and the given series assigned. Returns
	// ErrStaleWrite when the row moved on since it was read, which is how a
	// lost per-patient write race surfaces.
	AdvanceProgress(ctx context.Context, patientID, seriesID primitive.ObjectID, fromSession int) error

	// CountActiveBySeries counts active patients currently assigned to the
	// series. A non-zero count freezes the series structure.
	CountActiveBySeries(ctx context.Context, seriesID primitive.ObjectID) (int64, error)
}

// SeriesRepository defines the interface for interacting with therapy series.
type SeriesRepository interface {
	Create(ctx context.Context, series *domain.Series) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Series, error)
	GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Series, error)
	Update(ctx context.Context, series *domain.Series) error
	Delete(ctx context.Context, id, instructorID primitive.ObjectID) error
}

// SessionRepository defines the interface for interacting with session history.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error)
	GetByPatientID(ctx context.Context, patientID primitive.ObjectID) ([]domain.Session, error)

	// GetByInstructorID returns sessions across all of the instructor's
	// patients, newest first. A non-nil since bounds the window.
	GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID, since *time.Time) ([]domain.Session, error)

	// UpdateFeedback mutates the only non-structural fields a session has.
	UpdateFeedback(ctx context.Context, id, patientID primitive.ObjectID, comment *string, rating *int) (*domain.Session, error)
}
