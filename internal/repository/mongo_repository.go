package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
)

// MongoFeedbackRepository implements FeedbackRepository using a MongoDB collection.
type MongoFeedbackRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ FeedbackRepository = (*MongoFeedbackRepository)(nil)

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewMongoFeedbackRepository creates a repository on the given collection.
func NewMongoFeedbackRepository(client *mongo.Client, database, collection string) *MongoFeedbackRepository {
	return &MongoFeedbackRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the indexes used by the read paths.
func (r *MongoFeedbackRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "course", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create stores a new entry.
func (r *MongoFeedbackRepository) Create(ctx context.Context, create *models.FeedbackCreate) (*models.Feedback, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	defer observeMongo("create", time.Now())

	entry := &models.Feedback{
		ID:        uuid.NewString(),
		StudentID: create.StudentID,
		Course:    create.Course,
		Text:      create.Text,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return entry, nil
}

// GetByID retrieves an entry by its ID.
func (r *MongoFeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	defer observeMongo("get_by_id", time.Now())

	var entry models.Feedback
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		return nil, mongoNotFoundOr(err, "failed to get feedback")
	}
	return &entry, nil
}

// GetLatestByStudent retrieves the most recent entry left by a student.
func (r *MongoFeedbackRepository) GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error) {
	defer observeMongo("get_latest", time.Now())

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var entry models.Feedback
	err := r.collection.FindOne(ctx, bson.M{"student_id": studentID}, opts).Decode(&entry)
	if err != nil {
		return nil, mongoNotFoundOr(err, "failed to get feedback")
	}
	return &entry, nil
}

// ListByCourse returns entries for a course, newest first.
func (r *MongoFeedbackRepository) ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	defer observeMongo("list_by_course", time.Now())

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"course": models.NormalizeCourse(course)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	entries := make([]*models.Feedback, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode feedback: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by ID.
func (r *MongoFeedbackRepository) Delete(ctx context.Context, id string) (*models.Feedback, error) {
	defer observeMongo("delete", time.Now())

	var entry models.Feedback
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		return nil, mongoNotFoundOr(err, "failed to delete feedback")
	}
	return &entry, nil
}

// HealthCheck pings the primary.
func (r *MongoFeedbackRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func mongoNotFoundOr(err error, msg string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrFeedbackNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func observeMongo(operation string, start time.Time) {
	metrics.RecordStoreQuery("mongo", operation, time.Since(start))
}
