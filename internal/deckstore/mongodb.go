package deckstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"decklens/internal/core"
)

// mongoStore implements Store backed by a MongoDB collection.
type mongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoExtraction is the document shape; the profile embeds flat so the
// collection is queryable per field.
type mongoExtraction struct {
	ID        string           `bson:"_id"`
	FilePath  string           `bson:"file_path"`
	Profile   core.DeckProfile `bson:"profile"`
	CreatedAt bson.DateTime    `bson:"created_at"`
}

// NewMongoDB creates a MongoDB-backed store.
func NewMongoDB(ctx context.Context, url, database string) (Store, error) {
	if url == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}
	if database == "" {
		database = "decklens"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(database).Collection("extractions")

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "file_path", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create extractions index: %w", err)
	}

	return &mongoStore{client: client, collection: collection}, nil
}

func (s *mongoStore) Insert(ctx context.Context, rec *core.StoredExtraction) error {
	doc := mongoExtraction{
		ID:        rec.ID,
		FilePath:  rec.FilePath,
		Profile:   rec.Profile,
		CreatedAt: bson.NewDateTimeFromTime(rec.CreatedAt),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

func (s *mongoStore) Get(ctx context.Context, id string) (*core.StoredExtraction, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil)
}

func (s *mongoStore) GetByFilePath(ctx context.Context, filePath string) (*core.StoredExtraction, error) {
	sort := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.findOne(ctx, bson.M{"file_path": filePath}, sort)
}

func (s *mongoStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptionsBuilder) (*core.StoredExtraction, error) {
	var doc mongoExtraction
	var err error
	if opts != nil {
		err = s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	} else {
		err = s.collection.FindOne(ctx, filter).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &core.StoredExtraction{
		ID:        doc.ID,
		FilePath:  doc.FilePath,
		Profile:   doc.Profile,
		CreatedAt: doc.CreatedAt.Time(),
	}, nil
}

func (s *mongoStore) Close() error {
	if s.client != nil {
		return s.client.Disconnect(context.Background())
	}
	return nil
}
