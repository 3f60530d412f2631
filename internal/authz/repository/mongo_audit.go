package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/model"
)

// MongoAuditRepository implements AuditRepository. Append-only: no update or
// delete operation exists on the collection through this type.
type MongoAuditRepository struct {
	Collection *mongo.Collection
}

func NewMongoAuditRepository(db *mongo.Database, collectionName string) *MongoAuditRepository {
	return &MongoAuditRepository{Collection: db.Collection(collectionName)}
}

func (r *MongoAuditRepository) EnsureAuditIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetName("idx_timestamp_seq"),
		},
		{
			Keys:    bson.D{{Key: "actor", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_actor_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "event_type", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_type_timestamp"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoAuditRepository) AppendEvent(ctx context.Context, e *model.AuditEvent) error {
	_, err := r.Collection.InsertOne(ctx, e)
	return err
}

func (r *MongoAuditRepository) FindEvents(ctx context.Context, filter AuditFilter) (AuditCursor, error) {
	query := bson.M{}
	if filter.Actor != "" {
		query["actor"] = filter.Actor
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	timeRange := bson.M{}
	if !filter.From.IsZero() {
		timeRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		timeRange["$lt"] = filter.To
	}
	if len(timeRange) > 0 {
		query["timestamp"] = timeRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	return r.Collection.Find(ctx, query, opts)
}
