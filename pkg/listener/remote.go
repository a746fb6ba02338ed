package listener

import (
	"context"
	"time"

	"diagflow/pkg/logger"
	"diagflow/pkg/retry"
)

type remoteOptions struct {
	policy retry.Policy
	logger logger.Logger
}

// RemoteOption configures the listeners that talk to an external service.
type RemoteOption func(*remoteOptions)

func WithRetryPolicy(p retry.Policy) RemoteOption {
	return func(o *remoteOptions) {
		o.policy = p
	}
}

func WithLogger(log logger.Logger) RemoteOption {
	return func(o *remoteOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

func newRemoteOptions(opts []RemoteOption) remoteOptions {
	o := remoteOptions{
		policy: retry.DefaultPolicy(),
		logger: logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// connect runs fn under the retry policy, logging every failed attempt.
func (o remoteOptions) connect(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	return retry.RetryWithCallback(ctx, o.policy, func() error {
		return fn(ctx)
	}, func(attempt int, err error, next time.Duration) {
		o.logger.WarnwCtx(ctx, "Listener connect attempt failed",
			"listener", label,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
}
