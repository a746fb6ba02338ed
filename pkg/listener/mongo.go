package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"diagflow/internal/constants"
	"diagflow/pkg/errors"
	"diagflow/pkg/migrations"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
)

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type documentInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoListener stores each message as a document keyed by message id.
type MongoListener struct {
	Base
	cfg  MongoConfig
	opts remoteOptions

	mu       sync.Mutex
	client   *mongo.Client
	inserter documentInserter
}

func NewMongoListener(id int, cfg MongoConfig, opts ...RemoteOption) *MongoListener {
	if cfg.Database == "" {
		cfg.Database = constants.DefaultMongoDBName
	}
	if cfg.Collection == "" {
		cfg.Collection = constants.DefaultMongoColl
	}
	return &MongoListener{
		Base: Base{id: id, name: "mongodb"},
		cfg:  cfg,
		opts: newRemoteOptions(opts),
	}
}

func (l *MongoListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsOpen() {
		return nil
	}
	if l.inserter != nil {
		l.setOpen(true)
		return nil
	}
	if l.cfg.URI == "" {
		return errors.ErrInvalidArgument.WithMessage("mongodb listener uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(l.cfg.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = l.opts.connect(ctx, Label(l), func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(l.cfg.Database).Collection(l.cfg.Collection)
	if err := migrations.EnsureMessageIndexes(ctx, coll, l.cfg.TTL); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	l.client = client
	l.inserter = coll
	l.setOpen(true)
	l.opts.logger.InfowCtx(ctx, "MongoDB listener opened",
		"database", l.cfg.Database,
		"collection", l.cfg.Collection,
	)
	return nil
}

func (l *MongoListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setOpen(false)
	if l.client == nil {
		return nil
	}
	err := l.client.Disconnect(context.Background())
	l.client = nil
	l.inserter = nil
	return err
}

func (l *MongoListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	ins := l.inserter
	l.mu.Unlock()

	if ins == nil {
		return errors.ErrUnavailable.WithMessage("mongodb listener is not open")
	}

	if _, err := ins.InsertOne(ctx, persist.NewRecord(msg)); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	l.next()
	return nil
}

func (l *MongoListener) Check(ctx context.Context) error {
	l.mu.Lock()
	client := l.client
	l.mu.Unlock()

	if client == nil {
		return errors.ErrUnavailable.WithMessage("mongodb listener is not open")
	}
	return client.Ping(ctx, readpref.Primary())
}
