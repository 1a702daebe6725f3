package audithook

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection MongoRecorder writes to.
const DefaultCollection = "membership_audit"

// MongoRecorder appends audit events to a MongoDB collection. Events are
// keyed by notification ID, so a redelivered notification is stored once.
type MongoRecorder struct {
	coll *mongo.Collection
}

var _ Recorder = (*MongoRecorder)(nil)

// NewMongoRecorder creates a recorder on db. An empty collection name
// selects DefaultCollection.
func NewMongoRecorder(db *mongo.Database, collection string) *MongoRecorder {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoRecorder{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique notification index and a lookup index
// on resource and time.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notification_id", Value: 1}, {Key: "action", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("audit_hook/mongo: create indexes: %w", err)
	}
	return nil
}

// Record implements Recorder.
func (r *MongoRecorder) Record(ctx context.Context, event *AuditEvent) error {
	_, err := r.coll.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit_hook/mongo: insert %s: %w", event.Action, err)
	}
	return nil
}

// Find returns the audit events for one resource, newest first.
func (r *MongoRecorder) Find(ctx context.Context, resource, resourceID string) ([]*AuditEvent, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"resource": resource, "resource_id": resourceID},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "seq", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("audit_hook/mongo: find: %w", err)
	}
	defer cur.Close(ctx)

	var events []*AuditEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("audit_hook/mongo: decode: %w", err)
	}
	return events, nil
}
