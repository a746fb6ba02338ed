package listener

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"diagflow/pkg/migrations"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
	"diagflow/pkg/retry"
)

const containerStartupTimeout = 60 * time.Second

func requireContainers(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func quickRetry() RemoteOption {
	return WithRetryPolicy(retry.Policy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})
}

func TestRedisListenerIntegration(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisListenerWithClient(1, client, RedisConfig{Stream: "diag:test", MaxLen: 100}, quickRetry())
	require.NoError(t, l.Open(ctx))
	require.NoError(t, l.Check(ctx))

	msg := testMessage(models.KindError, "stream me")
	require.NoError(t, l.Dispatch(ctx, msg))
	require.NoError(t, l.Close())

	entries, err := client.XRange(ctx, "diag:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, msg.ID, entries[0].Values["id"])

	var rec persist.Record
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["record"].(string)), &rec))
	assert.Equal(t, "stream me", rec.Text)
}

func TestPostgresListenerIntegration(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartupTimeout),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	l := NewPostgresListener(2, PostgresConfig{DSN: dsn}, quickRetry())
	require.NoError(t, l.Open(ctx))

	msg := testMessage(models.KindWarning, "row me")
	msg.Scope = &models.Scope{Name: "import", Depth: 1}
	require.NoError(t, l.Dispatch(ctx, msg))
	// same id again is ignored
	require.NoError(t, l.Dispatch(ctx, msg))
	require.NoError(t, l.Close())

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var text, scope string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diag_messages").Scan(&count))
	require.NoError(t, db.QueryRowContext(ctx, "SELECT text, scope_name FROM diag_messages WHERE id = $1", msg.ID).Scan(&text, &scope))
	assert.Equal(t, 1, count)
	assert.Equal(t, "row me", text)
	assert.Equal(t, "import", scope)

	version, dirty, err := migrations.PostgresVersion(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestMongoListenerIntegration(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	l := NewMongoListener(3, MongoConfig{URI: uri, Database: "test_db", TTL: time.Hour}, quickRetry())
	require.NoError(t, l.Open(ctx))
	require.NoError(t, l.Check(ctx))

	msg := testMessage(models.KindError, "document me")
	require.NoError(t, l.Dispatch(ctx, msg))
	require.NoError(t, l.Close())

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	var rec persist.Record
	err = client.Database("test_db").Collection("messages").FindOne(ctx, bson.M{"_id": msg.ID}).Decode(&rec)
	require.NoError(t, err)
	assert.Equal(t, "document me", rec.Text)
	assert.Equal(t, models.KindError, rec.Kind)
}

func TestKafkaListenerIntegration(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("diagflow-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	topic := fmt.Sprintf("diag_test_%d", time.Now().UnixNano())
	l := NewKafkaListener(4, KafkaConfig{Brokers: brokers, Topic: topic}, quickRetry())
	require.NoError(t, l.Open(ctx))

	msg := testMessage(models.KindError, "publish me")
	require.Eventually(t, func() bool {
		return l.Dispatch(ctx, msg) == nil
	}, 30*time.Second, time.Second)
	require.NoError(t, l.Close())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	got, err := reader.ReadMessage(rctx)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, string(got.Key))
}
