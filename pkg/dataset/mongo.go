package dataset

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource loads records from a MongoDB collection for hosted
// deployments. The collection stores item metrics only; tree state never
// touches the database.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoOptions configures the MongoDB connection.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// NewMongoSource connects to MongoDB and verifies the connection with a
// ping before returning.
func NewMongoSource(ctx context.Context, opts MongoOptions) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.URI, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping %s: %w", opts.URI, err)
	}
	return &MongoSource{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Load reads every record in the collection, sorted by id for
// deterministic dataset order across restarts.
func (s *MongoSource) Load(ctx context.Context) ([]Record, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return records, nil
}

// Close disconnects the client.
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoSource implements Source.
var _ Source = (*MongoSource)(nil)
