package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"diagflow/internal/constants"
	"diagflow/pkg/errors"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
	"diagflow/pkg/tracing"
)

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaListener publishes one JSON record per message, keyed by message id,
// with the reporting span propagated through the headers.
type KafkaListener struct {
	Base
	cfg  KafkaConfig
	opts remoteOptions

	mu     sync.Mutex
	writer messageWriter
	// reachable runs on open to check the brokers; nil skips the check
	reachable func(ctx context.Context) error
}

func NewKafkaListener(id int, cfg KafkaConfig, opts ...RemoteOption) *KafkaListener {
	if cfg.Topic == "" {
		cfg.Topic = constants.DefaultKafkaTopic
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = constants.KafkaBatchTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = constants.KafkaWriteTimeout
	}

	l := &KafkaListener{
		Base: Base{id: id, name: "kafka"},
		cfg:  cfg,
		opts: newRemoteOptions(opts),
	}
	l.reachable = l.Check
	return l
}

func (l *KafkaListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsOpen() {
		return nil
	}
	if len(l.cfg.Brokers) == 0 {
		return errors.ErrInvalidArgument.WithMessage("kafka listener needs at least one broker")
	}

	if l.reachable != nil {
		if err := l.opts.connect(ctx, Label(l), l.reachable); err != nil {
			return fmt.Errorf("failed to reach kafka: %w", err)
		}
	}

	if l.writer == nil {
		l.writer = &kafka.Writer{
			Addr:         kafka.TCP(l.cfg.Brokers...),
			Topic:        l.cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: l.cfg.BatchTimeout,
			WriteTimeout: l.cfg.WriteTimeout,
			Async:        false,

			AllowAutoTopicCreation: true,
		}
	}

	l.setOpen(true)
	l.opts.logger.InfowCtx(ctx, "Kafka listener opened",
		"brokers", l.cfg.Brokers,
		"topic", l.cfg.Topic,
	)
	return nil
}

func (l *KafkaListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setOpen(false)
	if l.writer == nil {
		return nil
	}
	err := l.writer.Close()
	l.writer = nil
	return err
}

func (l *KafkaListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	w := l.writer
	l.mu.Unlock()

	if w == nil {
		return errors.ErrUnavailable.WithMessage("kafka listener is not open")
	}

	body, err := json.Marshal(persist.NewRecord(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := []kafka.Header{{Key: "kind", Value: []byte(msg.Kind)}}
	headers = tracing.InjectTraceContext(ctx, headers)

	err = w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.ID),
		Value:   body,
		Headers: headers,
		Time:    msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	l.next()
	return nil
}

func (l *KafkaListener) Check(ctx context.Context) error {
	var lastErr error
	for _, broker := range l.cfg.Brokers {
		dctx, cancel := context.WithTimeout(ctx, constants.KafkaDialTimeout)
		conn, err := kafka.DialContext(dctx, "tcp", broker)
		cancel()
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.ErrInvalidArgument.WithMessage("no kafka brokers configured")
	}
	return lastErr
}
