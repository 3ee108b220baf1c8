package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
// Mongo holds the car catalog, runtime settings and email templates.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	fmt.Println("Successfully connected to MongoDB!")
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the unique indexes the settings and template lookups rely on.
func EnsureIndexes(ctx context.Context, mdb *mongo.Database) error {
	indexes := map[string]mongo.IndexModel{
		"configuration": {
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		"email_templates": {
			Keys:    bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		"cars": {
			Keys: bson.D{{Key: "slug", Value: 1}},
		},
	}
	for coll, model := range indexes {
		if _, err := mdb.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", coll, err)
		}
	}
	return nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	fmt.Println("MongoDB connection closed.")
	return nil
}
