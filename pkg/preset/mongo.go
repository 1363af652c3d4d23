package preset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "metaop"

const mongoCollection = "presets"

// MongoStore keeps presets in a MongoDB collection keyed by name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses the presets collection of
// database (DefaultMongoDatabase if empty).
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}, nil
}

// Get returns the named preset.
func (s *MongoStore) Get(ctx context.Context, name string) (*Preset, error) {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return nil, err
	}
	var p Preset
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find preset %s: %w", name, err)
	}
	return &p, nil
}

// Save upserts the preset.
func (s *MongoStore) Save(ctx context.Context, p *Preset) error {
	if err := errs.ValidateIdentifier("preset name", p.Name); err != nil {
		return err
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.Name}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save preset %s: %w", p.Name, err)
	}
	return nil
}

// Delete removes the preset.
func (s *MongoStore) Delete(ctx context.Context, name string) error {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete preset %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return notFound(name)
	}
	return nil
}

// List returns every preset sorted by name.
func (s *MongoStore) List(ctx context.Context) ([]Preset, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	var out []Preset
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
