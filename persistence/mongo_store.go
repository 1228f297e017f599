package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/BaSui01/flowcanvas/types"
)

// Graph documents carry a key prefix, matching the redis store's
// keying, so no graph name can collide with the registry singleton.
const (
	registryDocID  = "__registry__"
	graphDocPrefix = "graph:"
)

func graphDocID(name string) string {
	return graphDocPrefix + name
}

// graphDoc is the Mongo document of one graph or of the registry
// singleton. Data holds the JSON-encoded payload.
type graphDoc struct {
	Name    string `bson:"_id"`
	Version int64  `bson:"version"`
	Data    []byte `bson:"data"`
}

// MongoGraphStore is a MongoDB implementation of GraphStore.
// Compare-and-swap writes filter on the version field; a matched count
// of zero means a concurrent writer won.
type MongoGraphStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoGraphStore connects to the configured MongoDB deployment and
// verifies the connection.
func NewMongoGraphStore(config StoreConfig) (*MongoGraphStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(config.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := config.Mongo.Collection
	if collection == "" {
		collection = "graphs"
	}
	return &MongoGraphStore{
		client: client,
		coll:   client.Database(config.Mongo.Database).Collection(collection),
	}, nil
}

func (s *MongoGraphStore) ListGraphs(ctx context.Context) ([]string, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"_id": bson.M{"$regex": "^" + graphDocPrefix}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "failed to list graphs").WithCause(err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc struct {
			Name string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, types.NewError(types.ErrTransport, "failed to decode graph listing").WithCause(err)
		}
		names = append(names, strings.TrimPrefix(doc.Name, graphDocPrefix))
	}
	if err := cursor.Err(); err != nil {
		return nil, types.NewError(types.ErrTransport, "failed to list graphs").WithCause(err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MongoGraphStore) getDoc(ctx context.Context, id string) (graphDoc, bool, error) {
	var doc graphDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return graphDoc{}, false, nil
	}
	if err != nil {
		return graphDoc{}, false, err
	}
	return doc, true, nil
}

func (s *MongoGraphStore) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	doc, ok, err := s.getDoc(ctx, graphDocID(name))
	if err != nil {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrTransport, "failed to read graph %q", name).WithCause(err)
	}
	if !ok {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	var cfg types.GraphConfig
	if err := json.Unmarshal(doc.Data, &cfg); err != nil {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrTransport, "corrupt graph document %q", name).WithCause(err)
	}
	return cfg, doc.Version, nil
}

// putDoc applies the CAS write for one document id.
func (s *MongoGraphStore) putDoc(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	newVersion := expectedVersion + 1

	if expectedVersion == 0 {
		_, err := s.coll.InsertOne(ctx, graphDoc{Name: id, Version: newVersion, Data: data})
		if mongo.IsDuplicateKeyError(err) {
			doc, _, readErr := s.getDoc(ctx, id)
			if readErr != nil {
				return 0, readErr
			}
			return 0, types.NewConflictError(doc.Version, expectedVersion)
		}
		if err != nil {
			return 0, err
		}
		return newVersion, nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{"$set": bson.M{"version": newVersion, "data": data}})
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 0 {
		doc, _, readErr := s.getDoc(ctx, id)
		if readErr != nil {
			return 0, readErr
		}
		return 0, types.NewConflictError(doc.Version, expectedVersion)
	}
	return newVersion, nil
}

func (s *MongoGraphStore) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to encode graph %q", cfg.Name).WithCause(err)
	}
	newVersion, err := s.putDoc(ctx, graphDocID(cfg.Name), data, expectedVersion)
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", cfg.Name).WithCause(err)
	}
	return newVersion, nil
}

func (s *MongoGraphStore) DeleteGraph(ctx context.Context, name string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": graphDocID(name)})
	if err != nil {
		return types.NewErrorf(types.ErrTransport, "failed to delete graph %q", name).WithCause(err)
	}
	if res.DeletedCount == 0 {
		return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return nil
}

func (s *MongoGraphStore) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	doc, ok, err := s.getDoc(ctx, graphDocID(oldName))
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to read graph %q", oldName).WithCause(err)
	}
	if !ok {
		return 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", oldName)
	}
	if _, taken, err := s.getDoc(ctx, graphDocID(newName)); err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to read graph %q", newName).WithCause(err)
	} else if taken {
		return 0, types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
	}
	if doc.Version != expectedVersion {
		return 0, types.NewConflictError(doc.Version, expectedVersion)
	}

	var cfg types.GraphConfig
	if err := json.Unmarshal(doc.Data, &cfg); err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "corrupt graph document %q", oldName).WithCause(err)
	}
	cfg.Name = newName
	data, err := json.Marshal(cfg)
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to encode graph %q", newName).WithCause(err)
	}

	newVersion := doc.Version + 1
	_, err = s.coll.InsertOne(ctx, graphDoc{Name: graphDocID(newName), Version: newVersion, Data: data})
	if mongo.IsDuplicateKeyError(err) {
		return 0, types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
	}
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", newName).WithCause(err)
	}
	// Remove the old document only after the new one is durable. The
	// version check keeps a concurrent writer from resurrecting it.
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": graphDocID(oldName), "version": expectedVersion})
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to remove graph %q", oldName).WithCause(err)
	}
	if res.DeletedCount == 0 {
		_, _ = s.coll.DeleteOne(ctx, bson.M{"_id": graphDocID(newName), "version": newVersion})
		doc, _, readErr := s.getDoc(ctx, graphDocID(oldName))
		if readErr != nil {
			return 0, types.NewErrorf(types.ErrTransport, "failed to rename graph %q", oldName).WithCause(readErr)
		}
		return 0, types.NewConflictError(doc.Version, expectedVersion)
	}
	return newVersion, nil
}

func (s *MongoGraphStore) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	doc, ok, err := s.getDoc(ctx, registryDocID)
	if err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "failed to read server registry").WithCause(err)
	}
	if !ok {
		return types.ServerRegistry{}, 0, nil
	}
	var reg types.ServerRegistry
	if err := json.Unmarshal(doc.Data, &reg); err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "corrupt server registry document").WithCause(err)
	}
	return reg, doc.Version, nil
}

func (s *MongoGraphStore) PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(reg)
	if err != nil {
		return 0, types.NewError(types.ErrTransport, "failed to encode server registry").WithCause(err)
	}
	newVersion, err := s.putDoc(ctx, registryDocID, data, expectedVersion)
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewError(types.ErrTransport, "failed to write server registry").WithCause(err)
	}
	return newVersion, nil
}

func (s *MongoGraphStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoGraphStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ GraphStore = (*MongoGraphStore)(nil)
