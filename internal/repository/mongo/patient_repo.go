package mongo

import (
	"context"
	"errors"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const patientCollectionName = "patients"

// mongoPatientRepository implements repository.PatientRepository
type mongoPatientRepository struct {
	collection *mongo.Collection
}

// NewMongoPatientRepository creates a new patient repository backed by MongoDB.
func NewMongoPatientRepository(db *mongo.Database) repository.PatientRepository {
	return &mongoPatientRepository{
		collection: db.Collection(patientCollectionName),
	}
}

// Create inserts a new patient record.
func (r *mongoPatientRepository) Create(ctx context.Context, patient *domain.Patient) (primitive.ObjectID, error) {
	if patient.InstructorID == primitive.NilObjectID || patient.Name == "" {
		return primitive.NilObjectID, errors.New("patient requires instructorId and name")
	}

	patient.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	patient.IsActive = true
	patient.CurrentSession = 0

	result, err := r.collection.InsertOne(ctx, patient)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted patient ID")
	}
	return insertedID, nil
}

// GetByID retrieves a patient by ID.
func (r *mongoPatientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Patient, error) {
	var patient domain.Patient
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &patient, nil
}

// GetByUserID retrieves the patient record linked to a login account.
func (r *mongoPatientRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Patient, error) {
	var patient domain.Patient
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &patient, nil
}

// GetByInstructorID retrieves all patients managed by an instructor,
// including inactive ones; callers filter on IsActive where it matters.
func (r *mongoPatientRepository) GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Patient, error) {
	var patients []domain.Patient
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"instructorId": instructorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &patients); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return patients, nil
}

// UpdateDemographics modifies the instructor-editable fields. Progress
// counters and assignment are deliberately excluded; those have dedicated
// methods.
func (r *mongoPatientRepository) UpdateDemographics(ctx context.Context, patient *domain.Patient) error {
	if patient.ID == primitive.NilObjectID {
		return errors.New("patient ID is required for update")
	}

	update := bson.M{"$set": bson.M{
		"name":        patient.Name,
		"email":       patient.Email,
		"age":         patient.Age,
		"gender":      patient.Gender,
		"phone":       patient.Phone,
		"healthNotes": patient.HealthNotes,
		"updatedAt":   time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": patient.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// LinkUser attaches a login account to the patient record.
func (r *mongoPatientRepository) LinkUser(ctx context.Context, patientID, userID primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"userId":    userID,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": patientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the patient. Session history is never removed.
func (r *mongoPatientRepository) Deactivate(ctx context.Context, id, instructorID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "instructorId": instructorID}
	update := bson.M{"$set": bson.M{
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetAssignedSeries binds or clears the patient's series and resets the
// per-series counter. The lifetime counter stays as-is.
func (r *mongoPatientRepository) SetAssignedSeries(ctx context.Context, patientID primitive.ObjectID, seriesID *primitive.ObjectID) error {
	set := bson.M{
		"currentSession": 0,
		"updatedAt":      time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if seriesID != nil {
		set["assignedSeriesId"] = *seriesID
	} else {
		update["$unset"] = bson.M{"assignedSeriesId": ""}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": patientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AdvanceProgress performs the conditional counter advance. The filter pins
// both the counter value and the assigned series, so two racing writers can
// never both match: the second one sees MatchedCount == 0 and gets
// ErrStaleWrite.
func (r *mongoPatientRepository) AdvanceProgress(ctx context.Context, patientID, seriesID primitive.ObjectID, fromSession int) error {
	filter := bson.M{
		"_id":              patientID,
		"assignedSeriesId": seriesID,
		"currentSession":   fromSession,
		"isActive":         true,
	}
	update := bson.M{
		"$set": bson.M{
			"currentSession": fromSession + 1,
			"updatedAt":      time.Now().UTC(),
		},
		"$inc": bson.M{"totalSessionsCompleted": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrStaleWrite
	}
	return nil
}

// CountActiveBySeries counts active patients assigned to the series.
func (r *mongoPatientRepository) CountActiveBySeries(ctx context.Context, seriesID primitive.ObjectID) (int64, error) {
	filter := bson.M{"assignedSeriesId": seriesID, "isActive": true}
	return r.collection.CountDocuments(ctx, filter)
}

// EnsurePatientIndexes creates necessary indexes for the patients collection.
func EnsurePatientIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instructorId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			// Finding patients assigned to a series (series freeze check)
			Keys:    bson.D{{Key: "assignedSeriesId", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
