package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/model"
)

// MongoRoleRepository implements RoleRepository on a MongoDB collection.
type MongoRoleRepository struct {
	Assignments *mongo.Collection
}

func NewMongoRoleRepository(db *mongo.Database, collectionName string) *MongoRoleRepository {
	return &MongoRoleRepository{Assignments: db.Collection(collectionName)}
}

func (r *MongoRoleRepository) EnsureIndexes(ctx context.Context) error {
	// (user_id, role) unique: a user holds a given role at most once.
	idxUnique := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "role", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_user_role"),
	}

	idxUser := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "assigned_at", Value: 1}},
		Options: options.Index().SetName("idx_user_assigned_at"),
	}

	_, err := r.Assignments.Indexes().CreateMany(ctx, []mongo.IndexModel{idxUnique, idxUser})
	return err
}

func (r *MongoRoleRepository) InsertAssignment(ctx context.Context, a *model.RoleAssignment) error {
	_, err := r.Assignments.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoRoleRepository) DeleteAssignment(ctx context.Context, userID, role string) error {
	res, err := r.Assignments.DeleteOne(ctx, bson.M{"user_id": userID, "role": role})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRoleRepository) FindAssignments(ctx context.Context, userID string) ([]*model.RoleAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: 1}})
	cur, err := r.Assignments.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var assignments []*model.RoleAssignment
	if err := cur.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *MongoRoleRepository) DistinctUsers(ctx context.Context) ([]string, error) {
	values, err := r.Assignments.Distinct(ctx, "user_id", bson.M{})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			users = append(users, s)
		}
	}
	return users, nil
}
