package database

import (
	"context"
	"fmt"
	"time"

	"github.com/openpariksha/pariksha-be/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// NewMongoDatabase connects to the configured MongoDB deployment and
// returns the database handle the run repository persists into. The
// caller decides whether Mongo is in play at all; an empty URI never
// reaches this function.
func NewMongoDatabase(cfg config.StorageConfig) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.MongoURI).
		SetBSONOptions(
			&options.BSONOptions{
				ObjectIDAsHexString: true,
			},
		))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to reach MongoDB: %w", err)
	}
	return client.Database(cfg.MongoDatabase), nil
}
