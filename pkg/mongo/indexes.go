package mongo

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var requiredIndexes = []mongo.IndexModel{
	// Recently written keys, for inspecting what a storefront last saved.
	{
		Keys:    bson.D{{Key: "updated_at", Value: -1}},
		Options: options.Index().SetName("idx_updated_at"),
	},
}

// EnsureIndexes creates the key-value collection indexes. Creating an index
// that already exists is a no-op on the server.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection) error {
	for _, model := range requiredIndexes {
		indexName, err := collection.Indexes().CreateOne(ctx, model)
		if err != nil {
			log.WithError(err).WithField("collection", collection.Name()).Error("Error creating index")
			return err
		}
		log.WithFields(log.Fields{
			"index":      indexName,
			"collection": collection.Name(),
		}).Info("Ensured index")
	}
	return nil
}
