package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/types"
)

// Mongo is the MongoDB-backed Catalog. Records key on the canonical
// URL (unique index); numeric IDs come from a counters collection so
// the API exposes stable small integers instead of ObjectIDs.
type Mongo struct {
	client   *mongo.Client
	fabrics  *mongo.Collection
	counters *mongo.Collection
	logger   *slog.Logger
}

// NewMongo connects and ensures indexes.
func NewMongo(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Mongo{
		client:   client,
		fabrics:  db.Collection(cfg.Collection),
		counters: db.Collection("counters"),
		logger:   logger.With("component", "mongo_store"),
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "id", Value: 1}}},
		{Keys: bson.D{{Key: "rating", Value: 1}}},
		{Keys: bson.D{{Key: "origin", Value: 1}}},
	}
	if _, err := s.fabrics.Indexes().CreateMany(connectCtx, indexes); err != nil {
		return nil, fmt.Errorf("mongodb create indexes: %w", err)
	}

	return s, nil
}

func (s *Mongo) FindByURL(ctx context.Context, canonicalURL string) (*types.Fabric, error) {
	var f types.Fabric
	err := s.fabrics.FindOne(ctx, bson.M{"url": canonicalURL}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "find_by_url", Err: err}
	}
	return &f, nil
}

func (s *Mongo) Insert(ctx context.Context, f *types.Fabric) (int64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, &types.StoreError{Op: "insert", Err: err}
	}

	f.ID = id
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	if _, err := s.fabrics.InsertOne(ctx, f); err != nil {
		return 0, &types.StoreError{Op: "insert", Err: err}
	}
	return id, nil
}

func (s *Mongo) Update(ctx context.Context, f *types.Fabric) error {
	f.UpdatedAt = time.Now()
	res, err := s.fabrics.ReplaceOne(ctx, bson.M{"id": f.ID}, f)
	if err != nil {
		return &types.StoreError{Op: "update", Err: err}
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *Mongo) Get(ctx context.Context, id int64) (*types.Fabric, error) {
	var f types.Fabric
	err := s.fabrics.FindOne(ctx, bson.M{"id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "get", Err: err}
	}
	return &f, nil
}

func (s *Mongo) List(ctx context.Context, filter Filter) ([]*types.Fabric, error) {
	query := bson.M{}
	if filter.Rating != "" {
		query["rating"] = filter.Rating
	}
	if filter.Origin != "" {
		query["origin"] = bson.M{"$regex": filter.Origin}
	}

	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	if filter.Skip > 0 {
		opts.SetSkip(int64(filter.Skip))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.fabrics.Find(ctx, query, opts)
	if err != nil {
		return nil, &types.StoreError{Op: "list", Err: err}
	}
	defer cursor.Close(ctx)

	var out []*types.Fabric
	for cursor.Next(ctx) {
		var f types.Fabric
		if err := cursor.Decode(&f); err != nil {
			return nil, &types.StoreError{Op: "list", Err: err}
		}
		out = append(out, &f)
	}
	if err := cursor.Err(); err != nil {
		return nil, &types.StoreError{Op: "list", Err: err}
	}
	return out, nil
}

func (s *Mongo) UpdateRating(ctx context.Context, id int64, rating types.Rating) (*types.Fabric, error) {
	update := bson.M{"$set": bson.M{"rating": rating, "updated_at": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var f types.Fabric
	err := s.fabrics.FindOneAndUpdate(ctx, bson.M{"id": id}, update, opts).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "update_rating", Err: err}
	}
	return &f, nil
}

func (s *Mongo) Delete(ctx context.Context, id int64) (*types.Fabric, error) {
	var f types.Fabric
	err := s.fabrics.FindOneAndDelete(ctx, bson.M{"id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "delete", Err: err}
	}
	return &f, nil
}

func (s *Mongo) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.fabrics.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, &types.StoreError{Op: "stats", Err: err}
	}

	stats := &Stats{
		Total:   total,
		Ratings: make(map[types.Rating]int64),
	}

	for _, rating := range []types.Rating{types.RatingYes, types.RatingMaybe, types.RatingNo, types.RatingUnrated} {
		n, err := s.fabrics.CountDocuments(ctx, bson.M{"rating": rating})
		if err != nil {
			return nil, &types.StoreError{Op: "stats", Err: err}
		}
		stats.Ratings[rating] = n
	}

	origins, err := s.fabrics.Distinct(ctx, "origin", bson.M{"origin": bson.M{"$ne": ""}})
	if err != nil {
		return nil, &types.StoreError{Op: "stats", Err: err}
	}
	for _, o := range origins {
		if str, ok := o.(string); ok {
			stats.Origins = append(stats.Origins, str)
		}
	}

	return stats, nil
}

func (s *Mongo) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(closeCtx)
}

// nextID allocates the next numeric record ID from the counters
// collection.
func (s *Mongo) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": "fabrics"}, update, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
