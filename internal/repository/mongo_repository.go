package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartTTL = 90 * 24 * time.Hour

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	// Only a document with an older version matches. When a newer one exists
	// the upsert tries to insert a second document for the session and hits
	// the unique index, which means this write is stale.
	filter := bson.M{
		"session_id": cart.SessionID,
		"version":    bson.M{"$lt": cart.Version},
	}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"version":    cart.Version,
			"updated_at": cart.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": cart.CreatedAt,
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("session %s version %d: %w", cart.SessionID, cart.Version, ErrStaleVersion)
		}
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

// CreateIndexes must run before UpsertCart is used: the version guard relies
// on the unique session index.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}
