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

const seriesCollectionName = "series"

// mongoSeriesRepository implements repository.SeriesRepository
type mongoSeriesRepository struct {
	collection *mongo.Collection
}

// NewMongoSeriesRepository creates a new series repository backed by MongoDB.
func NewMongoSeriesRepository(db *mongo.Database) repository.SeriesRepository {
	return &mongoSeriesRepository{
		collection: db.Collection(seriesCollectionName),
	}
}

// Create inserts a new series with its embedded postures.
func (r *mongoSeriesRepository) Create(ctx context.Context, series *domain.Series) (primitive.ObjectID, error) {
	if series.InstructorID == primitive.NilObjectID || series.Name == "" {
		return primitive.NilObjectID, errors.New("series requires instructorId and name")
	}

	series.ID = primitive.NewObjectID()
	for i := range series.Postures {
		if series.Postures[i].ID == primitive.NilObjectID {
			series.Postures[i].ID = primitive.NewObjectID()
		}
		series.Postures[i].Sequence = i + 1
	}
	now := time.Now().UTC()
	series.CreatedAt = now
	series.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, series)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted series ID")
	}
	return insertedID, nil
}

// GetByID retrieves a series by its ID.
func (r *mongoSeriesRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Series, error) {
	var series domain.Series
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&series)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &series, nil
}

// GetByInstructorID retrieves all series authored by an instructor.
func (r *mongoSeriesRepository) GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Series, error) {
	var result []domain.Series
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"instructorId": instructorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update rewrites the mutable fields of a series. The caller (catalog
// service) is responsible for the in-use freeze check before structural
// changes reach this method.
func (r *mongoSeriesRepository) Update(ctx context.Context, series *domain.Series) error {
	if series.ID == primitive.NilObjectID {
		return errors.New("series ID is required for update")
	}

	for i := range series.Postures {
		if series.Postures[i].ID == primitive.NilObjectID {
			series.Postures[i].ID = primitive.NewObjectID()
		}
		series.Postures[i].Sequence = i + 1
	}

	update := bson.M{"$set": bson.M{
		"name":          series.Name,
		"description":   series.Description,
		"therapyType":   series.TherapyType,
		"difficulty":    series.Difficulty,
		"postures":      series.Postures,
		"totalSessions": series.TotalSessions,
		"updatedAt":     time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": series.ID, "instructorId": series.InstructorID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a series, scoped to its owning instructor.
func (r *mongoSeriesRepository) Delete(ctx context.Context, id, instructorID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "instructorId": instructorID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSeriesIndexes creates necessary indexes for the series collection.
func EnsureSeriesIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instructorId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "therapyType", Value: 1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
