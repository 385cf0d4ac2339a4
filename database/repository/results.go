package repository

import (
	"context"
	"errors"
	"fmt"

	"visaflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("record not found")

// ResultsRepository stores booking outcomes and vacancy alerts.
type ResultsRepository interface {
	RecordBookingResult(ctx context.Context, result *models.BookingResult) error
	RecordVacancyAlert(ctx context.Context, alert *models.VacancyAlert) error
	GetBookingResult(ctx context.Context, requestID string) (*models.BookingResult, error)
	RecentAlerts(ctx context.Context, targetID string, limit int64) ([]models.VacancyAlert, error)
}

// MongoResultsRepo implements ResultsRepository using MongoDB.
type MongoResultsRepo struct {
	resultsColl *mongo.Collection
	alertsColl  *mongo.Collection
}

// NewMongoResultsRepo constructs a new instance of MongoResultsRepo.
func NewMongoResultsRepo(db *mongo.Database) *MongoResultsRepo {
	return &MongoResultsRepo{
		resultsColl: db.Collection("booking_results"),
		alertsColl:  db.Collection("vacancy_alerts"),
	}
}

// EnsureIndexes creates the lookup and uniqueness indexes.
func (repo *MongoResultsRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := repo.resultsColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "requestId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("booking_results index: %w", err)
	}
	if _, err := repo.alertsColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "dedupeKey", Value: 1}}},
		{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("vacancy_alerts index: %w", err)
	}
	return nil
}

// RecordBookingResult upserts by request id so a re-recorded result
// replaces the earlier copy.
func (repo *MongoResultsRepo) RecordBookingResult(ctx context.Context, result *models.BookingResult) error {
	filter := bson.M{"requestId": result.RequestID}
	_, err := repo.resultsColl.ReplaceOne(ctx, filter, result, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to record booking result %s: %w", result.RequestID, err)
	}
	return nil
}

// RecordVacancyAlert inserts an alert. Re-recording the same alert id is a
// no-op; a slot set that reopens gets a new alert under the same dedupe key.
func (repo *MongoResultsRepo) RecordVacancyAlert(ctx context.Context, alert *models.VacancyAlert) error {
	if _, err := repo.alertsColl.InsertOne(ctx, alert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to record vacancy alert %s: %w", alert.ID, err)
	}
	return nil
}

func (repo *MongoResultsRepo) GetBookingResult(ctx context.Context, requestID string) (*models.BookingResult, error) {
	var result models.BookingResult
	if err := repo.resultsColl.FindOne(ctx, bson.M{"requestId": requestID}).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: booking result %s", ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("error fetching booking result %s: %w", requestID, err)
	}
	return &result, nil
}

// RecentAlerts lists the newest alerts of a target.
func (repo *MongoResultsRepo) RecentAlerts(ctx context.Context, targetID string, limit int64) ([]models.VacancyAlert, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := repo.alertsColl.Find(ctx, bson.M{"targetId": targetID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching alerts for %s: %w", targetID, err)
	}
	defer cursor.Close(ctx)

	alerts := []models.VacancyAlert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("error decoding alerts for %s: %w", targetID, err)
	}
	return alerts, nil
}
