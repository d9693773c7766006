package sink

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/event"
)

// MongoConfig configures a Mongo-backed event sink.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string

	// Database is the database name. Defaults to "gopace".
	Database string

	// Collection is the collection name. Defaults to "request_events".
	Collection string

	// Logger receives sink write failures. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Mongo persists terminal event snapshots to a MongoDB collection, keyed by
// request ID.
type Mongo struct {
	client *mongo.Client
	col    *mongo.Collection
	log    zerolog.Logger
}

// NewMongo connects to MongoDB and returns a sink writing to the configured
// collection. The caller owns the sink and must Close it.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if err := validation.ValidateNotEmpty("sink", "uri", cfg.URI); err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		cfg.Database = "gopace"
	}
	if cfg.Collection == "" {
		cfg.Collection = "request_events"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("sink: connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("sink: ping mongodb: %w", err)
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("sink", "mongo").Logger()
	}

	return &Mongo{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
		log:    log,
	}, nil
}

// Record upserts the snapshot keyed by its request ID, so recording the
// same event twice is harmless.
func (m *Mongo) Record(ctx context.Context, snap event.Snapshot) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": snap.RequestID}, snap, opts)
	if err != nil {
		m.log.Error().Err(err).Str("request_id", snap.RequestID).Msg("failed to record event")
		return fmt.Errorf("sink: record event %s: %w", snap.RequestID, err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
