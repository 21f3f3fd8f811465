package repository

import (
	"context"
	"errors"
	"log"

	"github.com/openpariksha/pariksha-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const runsCollection = "pipeline_runs"

type mongoRunRepo struct {
	collection *mongo.Collection
}

// NewMongoRunRepo creates the runs collection with its indexes on first
// use and returns a repository over it.
func NewMongoRunRepo(db *mongo.Database) (RunRepository, error) {
	names, err := db.ListCollectionNames(context.Background(), bson.D{})
	if err != nil {
		return nil, err
	}
	exists := false
	for _, name := range names {
		if name == runsCollection {
			exists = true
			break
		}
	}
	collection := db.Collection(runsCollection)
	if !exists {
		indexes := []mongo.IndexModel{
			{Keys: bson.D{{Key: "paper", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		}
		if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
			log.Printf("Error creating run indexes: %v", err)
		}
	}
	return &mongoRunRepo{collection: collection}, nil
}

func (r *mongoRunRepo) CreateRun(ctx context.Context, run *types.PipelineRun) error {
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *mongoRunRepo) GetRun(ctx context.Context, id string) (*types.PipelineRun, error) {
	var run types.PipelineRun
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *mongoRunRepo) UpdateRun(ctx context.Context, run *types.PipelineRun) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *mongoRunRepo) ListRuns(ctx context.Context, paper string, status []string, limit int) ([]*types.PipelineRun, error) {
	filter := bson.M{}
	if paper != "" {
		filter["paper"] = paper
	}
	if len(status) > 0 {
		filter["status"] = bson.M{"$in": status}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []*types.PipelineRun
	for cursor.Next(ctx) {
		var run types.PipelineRun
		if err := cursor.Decode(&run); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, cursor.Err()
}

func (r *mongoRunRepo) CountRuns(ctx context.Context) (int64, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, err
	}
	active, err := r.collection.CountDocuments(ctx, bson.M{"status": types.RUN_STATUS_RUNNING})
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
