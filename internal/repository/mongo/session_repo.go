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

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new session repository backed by MongoDB.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Create appends a session record. The unique (patientId, sessionNumber)
// index turns a racing duplicate into ErrDuplicate instead of a second row.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.PatientID == primitive.NilObjectID || session.SeriesID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("session requires patientId and seriesId")
	}
	if session.SessionNumber < 1 {
		return primitive.NilObjectID, errors.New("session number must be 1-based")
	}

	session.ID = primitive.NewObjectID()
	if session.CompletedAt.IsZero() {
		session.CompletedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted session ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single session.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByPatientID retrieves a patient's full session history, oldest first.
func (r *mongoSessionRepository) GetByPatientID(ctx context.Context, patientID primitive.ObjectID) ([]domain.Session, error) {
	var sessions []domain.Session
	findOptions := options.Find().SetSort(bson.D{{Key: "completedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"patientId": patientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetByInstructorID retrieves sessions across all of the instructor's
// patients, newest first. The aggregator reverses the order before any
// chronological output.
func (r *mongoSessionRepository) GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID, since *time.Time) ([]domain.Session, error) {
	filter := bson.M{"instructorId": instructorID}
	if since != nil {
		filter["completedAt"] = bson.M{"$gte": *since}
	}

	var sessions []domain.Session
	findOptions := options.Find().SetSort(bson.D{{Key: "completedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateFeedback mutates comment and/or rating, the only fields a session
// may change after creation. Nil arguments leave the field untouched.
func (r *mongoSessionRepository) UpdateFeedback(ctx context.Context, id, patientID primitive.ObjectID, comment *string, rating *int) (*domain.Session, error) {
	set := bson.M{}
	if comment != nil {
		set["comment"] = *comment
	}
	if rating != nil {
		set["rating"] = *rating
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	filter := bson.M{"_id": id, "patientId": patientID}
	findOptions := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Session
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, findOptions).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// EnsureSessionIndexes creates necessary indexes for the sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Contiguous-sequence invariant: one row per (patient, number)
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "sessionNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Instructor-scoped analytics windows
			Keys:    bson.D{{Key: "instructorId", Value: 1}, {Key: "completedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "seriesId", Value: 1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
