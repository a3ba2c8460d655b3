package mongo

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/con-plar/petstore/pkg/global"
)

// Connect opens a client for cfg.MongoURI and pings it.
func Connect(ctx context.Context, cfg global.Config) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().ApplyURI(cfg.MongoURI).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB")
	return client, nil
}

// Open connects, ensures indexes and returns the key-value store for cfg.
func Open(ctx context.Context, cfg global.Config) (*Store, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	collection := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
	if err := EnsureIndexes(ctx, collection); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return NewStore(client, collection), nil
}
