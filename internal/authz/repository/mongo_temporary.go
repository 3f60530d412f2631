package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/model"
)

// MongoTemporaryRepository implements TemporaryPermissionRepository.
type MongoTemporaryRepository struct {
	Collection *mongo.Collection
}

func NewMongoTemporaryRepository(db *mongo.Database, collectionName string) *MongoTemporaryRepository {
	return &MongoTemporaryRepository{Collection: db.Collection(collectionName)}
}

func (r *MongoTemporaryRepository) EnsureTemporaryIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "expires_at", Value: -1}},
			Options: options.Index().SetName("idx_user_expires_at"),
		},
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_active_expires_at"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoTemporaryRepository) InsertGrant(ctx context.Context, t *model.TemporaryPermission) error {
	_, err := r.Collection.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoTemporaryRepository) FindGrants(ctx context.Context, userID string) ([]*model.TemporaryPermission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.Collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var grants []*model.TemporaryPermission
	if err := cur.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *MongoTemporaryRepository) DeactivateGrant(ctx context.Context, id string) error {
	res, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoTemporaryRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.Collection.UpdateMany(ctx,
		bson.M{"is_active": true, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
