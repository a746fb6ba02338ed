package listener

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"diagflow/pkg/circuitbreaker"
	"diagflow/pkg/metrics"
	"diagflow/pkg/models"
)

type checker interface {
	Check(ctx context.Context) error
}

// Unwrap returns the listener a decorator wraps, or l itself.
func Unwrap(l Listener) Listener {
	for {
		u, ok := l.(interface{ Unwrap() Listener })
		if !ok {
			return l
		}
		l = u.Unwrap()
	}
}

// Check runs the health check of l or of the listener it decorates. Listeners
// without a check report healthy.
func Check(ctx context.Context, l Listener) error {
	if c, ok := Unwrap(l).(checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// BreakerListener fails dispatches fast while the wrapped sink keeps failing.
type BreakerListener struct {
	Listener
	cb *circuitbreaker.Wrapper
}

func WithBreaker(l Listener, cfg circuitbreaker.Config) *BreakerListener {
	if cfg.Name == "" {
		cfg.Name = Label(l)
	}
	return &BreakerListener{Listener: l, cb: circuitbreaker.NewWrapper(cfg)}
}

func (b *BreakerListener) Dispatch(ctx context.Context, msg *models.Message) error {
	return b.cb.Execute(ctx, func() error {
		return b.Listener.Dispatch(ctx, msg)
	})
}

func (b *BreakerListener) Breaker() *circuitbreaker.Wrapper {
	return b.cb
}

func (b *BreakerListener) Unwrap() Listener {
	return b.Listener
}

// ThrottledListener drops messages beyond a token bucket budget. Dropped
// messages are counted, not reported as failures.
type ThrottledListener struct {
	Listener
	limiter *rate.Limiter
	dropped atomic.Int64
}

func Throttle(l Listener, perSecond float64, burst int) *ThrottledListener {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledListener{Listener: l, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *ThrottledListener) Dispatch(ctx context.Context, msg *models.Message) error {
	if !t.limiter.Allow() {
		t.dropped.Add(1)
		metrics.IncListenerThrottled(Label(t))
		return nil
	}
	return t.Listener.Dispatch(ctx, msg)
}

func (t *ThrottledListener) Dropped() int64 {
	return t.dropped.Load()
}

func (t *ThrottledListener) Unwrap() Listener {
	return t.Listener
}
