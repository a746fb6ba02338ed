package migrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMessageIndexes creates the indexes the message collection is queried
// by. With a positive ttl, documents expire that long after their timestamp.
func EnsureMessageIndexes(ctx context.Context, coll *mongo.Collection, ttl time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: timestampIndexOptions(ttl),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_messages_kind_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "origin.namespace", Value: 1}},
			Options: options.Index().SetName("idx_messages_origin_namespace"),
		},
		{
			Keys:    bson.D{{Key: "scope.name", Value: 1}},
			Options: options.Index().SetName("idx_messages_scope_name").SetSparse(true),
		},
	}

	_, err := coll.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func timestampIndexOptions(ttl time.Duration) *options.IndexOptions {
	opts := options.Index().SetName("idx_messages_timestamp")
	if ttl > 0 {
		opts.SetExpireAfterSeconds(int32(ttl / time.Second))
	}
	return opts
}
