// Package mongo backs the storefront key-value store with a MongoDB
// collection holding one document per key.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/store"
)

type entry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

var _ store.Backend = (*Store)(nil)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// NewStore uses collection for storage. client may be nil when the caller
// owns the connection.
func NewStore(client *mongo.Client, collection *mongo.Collection) *Store {
	return &Store{
		client:     client,
		collection: collection,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var doc entry
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

// Set replaces the whole document for key, creating it if needed.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		entry{Key: key, Value: value, UpdatedAt: s.now()},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return err
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := global.GetDefaultTimer()
	defer cancel()
	return s.client.Disconnect(ctx)
}
