package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"diagflow/internal/constants"
	"diagflow/pkg/errors"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
)

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	// MaxLen caps the stream approximately; older entries are trimmed.
	MaxLen int64 `mapstructure:"max_len"`
}

// RedisListener appends each message to a capped Redis stream.
type RedisListener struct {
	Base
	cfg  RedisConfig
	opts remoteOptions

	mu     sync.Mutex
	client redis.UniversalClient
	owned  bool
}

func NewRedisListener(id int, cfg RedisConfig, opts ...RemoteOption) *RedisListener {
	if cfg.Stream == "" {
		cfg.Stream = constants.DefaultRedisStream
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = constants.DefaultRedisMaxLen
	}
	return &RedisListener{
		Base: Base{id: id, name: "redis"},
		cfg:  cfg,
		opts: newRemoteOptions(opts),
	}
}

// NewRedisListenerWithClient uses a client owned by the caller; Close leaves
// it open.
func NewRedisListenerWithClient(id int, client redis.UniversalClient, cfg RedisConfig, opts ...RemoteOption) *RedisListener {
	l := NewRedisListener(id, cfg, opts...)
	l.client = client
	return l
}

func (l *RedisListener) Stream() string {
	return l.cfg.Stream
}

func (l *RedisListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsOpen() {
		return nil
	}

	if l.client == nil {
		l.client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port),
			Password: l.cfg.Password,
			DB:       l.cfg.DB,
		})
		l.owned = true
	}

	client := l.client
	err := l.opts.connect(ctx, Label(l), func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	l.setOpen(true)
	l.opts.logger.InfowCtx(ctx, "Redis listener opened", "stream", l.cfg.Stream)
	return nil
}

func (l *RedisListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setOpen(false)
	if l.client == nil || !l.owned {
		return nil
	}
	err := l.client.Close()
	l.client = nil
	l.owned = false
	return err
}

func (l *RedisListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	client := l.client
	l.mu.Unlock()

	if client == nil {
		return errors.ErrUnavailable.WithMessage("redis listener is not open")
	}

	body, err := json.Marshal(persist.NewRecord(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.cfg.Stream,
		MaxLen: l.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":        msg.ID,
			"kind":      string(msg.Kind),
			"timestamp": strconv.FormatInt(msg.Timestamp.UnixMilli(), 10),
			"record":    string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to stream %s: %w", l.cfg.Stream, err)
	}

	l.next()
	return nil
}

func (l *RedisListener) Check(ctx context.Context) error {
	l.mu.Lock()
	client := l.client
	l.mu.Unlock()

	if client == nil {
		return errors.ErrUnavailable.WithMessage("redis listener is not open")
	}
	return client.Ping(ctx).Err()
}
