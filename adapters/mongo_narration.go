package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
)

// expiredNarrationRetention is how long an expired narration's metadata is kept before MongoDB removes it
const expiredNarrationRetention = 7 * 24 * time.Hour

// narrationDocument is the stored shape of a narration
type narrationDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	entities.Narration `bson:",inline"`
}

// MongoNarrationRepository implements NarrationRepository using MongoDB
type MongoNarrationRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// Ensure MongoNarrationRepository implements the NarrationRepository interface
var _ repositories.NarrationRepository = (*MongoNarrationRepository)(nil)

// NewMongoNarrationRepository creates a new MongoDB narration repository
func NewMongoNarrationRepository(db *mongo.Database, logger *zap.Logger) *MongoNarrationRepository {
	collection := db.Collection("narrations")

	// Create indexes for better performance
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Index on created_at for listing
		createdAtIndex := mongo.IndexModel{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		}

		// Index on status and expires_at for cleanup operations
		statusExpiresIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "expires_at", Value: 1},
			},
		}

		// TTL index removing narrations some time after they expire
		ttlIndex := mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(expiredNarrationRetention / time.Second)),
		}

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
			createdAtIndex,
			statusExpiresIndex,
			ttlIndex,
		})

		if err != nil {
			logger.Error("Failed to create narration indexes", zap.Error(err))
		} else {
			logger.Info("Narration indexes created successfully")
		}
	}()

	return &MongoNarrationRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create stores a new narration and sets its ID
func (r *MongoNarrationRepository) Create(ctx context.Context, narration *entities.Narration) error {
	if narration == nil {
		return errors.New("narration cannot be nil")
	}

	if err := narration.Validate(); err != nil {
		return err
	}

	result, err := r.collection.InsertOne(ctx, narrationDocument{Narration: *narration})
	if err != nil {
		r.logger.Error("Failed to create narration", zap.Error(err))
		return fmt.Errorf("failed to create narration: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		narration.ID = oid.Hex()
	}

	r.logger.Info("Narration created",
		zap.String("narrationId", narration.ID),
		zap.Int("segments", len(narration.Segments)),
		zap.Int("sizeBytes", narration.SizeBytes))

	return nil
}

// GetByID retrieves a narration by its ID
func (r *MongoNarrationRepository) GetByID(ctx context.Context, id string) (*entities.Narration, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrNarrationNotFound
	}

	var doc narrationDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNarrationNotFound
		}
		r.logger.Error("Failed to get narration by ID", zap.Error(err), zap.String("narrationId", id))
		return nil, fmt.Errorf("failed to get narration %s: %w", id, err)
	}

	return doc.toEntity(), nil
}

// List retrieves the most recent narrations without their audio
func (r *MongoNarrationRepository) List(ctx context.Context, limit int) ([]*entities.Narration, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}). // Most recent first
		SetProjection(bson.M{"audio": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list narrations", zap.Error(err))
		return nil, fmt.Errorf("failed to list narrations: %w", err)
	}
	defer cursor.Close(ctx)

	narrations := make([]*entities.Narration, 0)
	for cursor.Next(ctx) {
		var doc narrationDocument
		if err := cursor.Decode(&doc); err != nil {
			r.logger.Error("Failed to decode narration", zap.Error(err))
			continue
		}
		narrations = append(narrations, doc.toEntity())
	}

	if err := cursor.Err(); err != nil {
		r.logger.Error("Cursor error", zap.Error(err))
		return nil, err
	}

	return narrations, nil
}

// ExpireNarrations marks narrations past their expiry as expired and drops their audio
func (r *MongoNarrationRepository) ExpireNarrations(ctx context.Context, now time.Time) (int, error) {
	filter := bson.M{
		"status":     entities.NarrationStatusReady,
		"expires_at": bson.M{"$lt": now},
	}

	update := bson.M{
		"$set":   bson.M{"status": entities.NarrationStatusExpired},
		"$unset": bson.M{"audio": ""},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to expire narrations", zap.Error(err))
		return 0, fmt.Errorf("failed to expire narrations: %w", err)
	}

	if result.ModifiedCount > 0 {
		r.logger.Info("Expired narrations", zap.Int64("count", result.ModifiedCount))
	}

	return int(result.ModifiedCount), nil
}

func (d *narrationDocument) toEntity() *entities.Narration {
	narration := d.Narration
	narration.ID = d.ID.Hex()
	return &narration
}
