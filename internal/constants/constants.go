package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaDialTimeout  = 5 * time.Second
)

const (
	DefaultKafkaTopic    = "diag_messages"
	DefaultRedisStream   = "diag:messages"
	DefaultRedisMaxLen   = 10000
	DefaultMongoDBName   = "diagflow"
	DefaultMongoColl     = "messages"
	DefaultInspectorPort = 8089
	DefaultPipelineName  = "default"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	ListenerConsole  = "console"
	ListenerFile     = "file"
	ListenerZap      = "zap"
	ListenerSpan     = "span"
	ListenerRedis    = "redis"
	ListenerKafka    = "kafka"
	ListenerMongoDB  = "mongodb"
	ListenerPostgres = "postgres"
)

const (
	FilterKind       = "kind"
	FilterNamespace  = "namespace"
	FilterType       = "type"
	FilterMethod     = "method"
	FilterExpression = "expression"
	FilterPayload    = "payload"
)
