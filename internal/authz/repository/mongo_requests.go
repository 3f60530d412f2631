package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/model"
)

// MongoRequestRepository implements RequestRepository.
type MongoRequestRepository struct {
	Collection *mongo.Collection
}

func NewMongoRequestRepository(db *mongo.Database, collectionName string) *MongoRequestRepository {
	return &MongoRequestRepository{Collection: db.Collection(collectionName)}
}

func (r *MongoRequestRepository) EnsureRequestIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_user_status"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "submitted_at", Value: -1}},
			Options: options.Index().SetName("idx_status_submitted_at"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoRequestRepository) InsertRequest(ctx context.Context, req *model.PermissionRequest) error {
	_, err := r.Collection.InsertOne(ctx, req)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoRequestRepository) GetRequest(ctx context.Context, id string) (*model.PermissionRequest, error) {
	var req model.PermissionRequest
	err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *MongoRequestRepository) FindRequests(ctx context.Context, status model.RequestStatus) ([]*model.PermissionRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cur, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var requests []*model.PermissionRequest
	if err := cur.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// FinalizeRequest performs the pending → terminal transition as a conditional
// update on status="pending". When two reviewers race, exactly one update
// matches; the loser observes the request already finalized.
func (r *MongoRequestRepository) FinalizeRequest(ctx context.Context, id string, status model.RequestStatus, reviewerID, comment string, reviewedAt time.Time) error {
	res, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusPending},
		bson.M{"$set": bson.M{
			"status":         status,
			"reviewer_id":    reviewerID,
			"review_comment": comment,
			"reviewed_at":    reviewedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the id is unknown or the request is already terminal.
		count, err := r.Collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyFinalized
	}
	return nil
}
