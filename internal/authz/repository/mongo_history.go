package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/model"
)

// MongoHistoryRepository implements HistoryRepository using MongoDB. The
// collection is append-only: this type deliberately exposes no update or
// delete operation.
type MongoHistoryRepository struct {
	Collection *mongo.Collection
}

func NewMongoHistoryRepository(db *mongo.Database, collectionName string) *MongoHistoryRepository {
	return &MongoHistoryRepository{Collection: db.Collection(collectionName)}
}

func (r *MongoHistoryRepository) EnsureHistoryIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_created_at"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoHistoryRepository) AppendHistory(ctx context.Context, h *model.PermissionHistory) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	_, err := r.Collection.InsertOne(ctx, h)
	return err
}

func (r *MongoHistoryRepository) FindHistory(ctx context.Context, userID string, limit int64) ([]*model.PermissionHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.Collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []*model.PermissionHistory
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
