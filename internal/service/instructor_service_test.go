package service

import (
	"context"
	"testing"

	"yogatherapy/backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newInstructorEnv() (*fakeUserRepo, *fakePatientRepo, InstructorService) {
	users := newFakeUserRepo()
	patients := newFakePatientRepo()
	return users, patients, NewInstructorService(users, patients)
}

func TestAddAndUpdatePatient(t *testing.T) {
	_, _, svc := newInstructorEnv()
	instructorID := primitive.NewObjectID()

	age := 54
	patient, err := svc.AddPatient(context.Background(), instructorID, PatientInput{
		Name:        "Asha",
		Email:       "asha@example.com",
		Age:         &age,
		HealthNotes: "lower back pain, avoid deep twists",
	})
	require.NoError(t, err)
	require.True(t, patient.IsActive)
	require.Equal(t, instructorID, patient.InstructorID)

	_, err = svc.AddPatient(context.Background(), instructorID, PatientInput{})
	require.True(t, domain.IsCode(err, domain.CodeValidation))

	updated, err := svc.UpdatePatient(context.Background(), instructorID, patient.ID, PatientInput{
		Name:  "Asha K",
		Phone: "555-0101",
	})
	require.NoError(t, err)
	require.Equal(t, "Asha K", updated.Name)
	require.Equal(t, "555-0101", updated.Phone)
}

func TestPatientRosterScopedToInstructor(t *testing.T) {
	_, patients, svc := newInstructorEnv()
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	patient := seedPatient(t, patients, owner, "Ravi")
	seedPatient(t, patients, other, "Mira")

	list, err := svc.ListPatients(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.GetPatient(context.Background(), other, patient.ID)
	require.True(t, domain.IsCode(err, domain.CodeNotFound))
	_, err = svc.UpdatePatient(context.Background(), other, patient.ID, PatientInput{Name: "X"})
	require.True(t, domain.IsCode(err, domain.CodeNotFound))
	err = svc.DeactivatePatient(context.Background(), other, patient.ID)
	require.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestDeactivatePatientKeepsRecord(t *testing.T) {
	_, patients, svc := newInstructorEnv()
	owner := primitive.NewObjectID()
	patient := seedPatient(t, patients, owner, "Noor")

	require.NoError(t, svc.DeactivatePatient(context.Background(), owner, patient.ID))

	stored, err := patients.GetByID(context.Background(), patient.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	// Already-inactive records deactivate like missing ones.
	err = svc.DeactivatePatient(context.Background(), owner, patient.ID)
	require.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestLinkPatientAccount(t *testing.T) {
	users, patients, svc := newInstructorEnv()
	owner := primitive.NewObjectID()
	patient := seedPatient(t, patients, owner, "Tara")

	accountID, err := users.Create(context.Background(), &domain.User{
		Name:  "Tara",
		Email: "tara@example.com",
		Role:  domain.RolePatient,
	})
	require.NoError(t, err)

	linked, err := svc.LinkPatientAccount(context.Background(), owner, patient.ID, "tara@example.com")
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	require.Equal(t, accountID, *linked.UserID)

	_, err = svc.LinkPatientAccount(context.Background(), owner, patient.ID, "nobody@example.com")
	require.True(t, domain.IsCode(err, domain.CodeNotFound))

	_, err = users.Create(context.Background(), &domain.User{
		Name:  "Ina",
		Email: "ina@example.com",
		Role:  domain.RoleInstructor,
	})
	require.NoError(t, err)
	_, err = svc.LinkPatientAccount(context.Background(), owner, patient.ID, "ina@example.com")
	require.True(t, domain.IsCode(err, domain.CodeConflict))
}
