package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagflow/pkg/circuitbreaker"
	"diagflow/pkg/models"
)

func TestThrottleDropsOverBudget(t *testing.T) {
	inner := newRecording(1)
	l := Throttle(inner, 0.001, 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Dispatch(context.Background(), testMessage(models.KindWarning, "x")))
	}

	assert.Equal(t, 2, inner.received())
	assert.Equal(t, int64(3), l.Dropped())
	assert.Equal(t, 1, l.ID())
	assert.Same(t, inner, Unwrap(l))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := newRecording(2)
	inner.dispatchErr = errors.New("broker down")

	cfg := circuitbreaker.DefaultConfig("")
	cfg.MinRequests = 3
	cfg.FailureRatio = 0.5
	cfg.Timeout = time.Minute
	l := WithBreaker(inner, cfg)
	assert.Equal(t, "recording#2", l.Breaker().Name())

	for i := 0; i < 3; i++ {
		assert.Error(t, l.Dispatch(context.Background(), testMessage(models.KindError, "x")))
	}
	assert.Equal(t, gobreaker.StateOpen, l.Breaker().State())

	err := l.Dispatch(context.Background(), testMessage(models.KindError, "x"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.received())
}

func TestDecoratorsInRegistry(t *testing.T) {
	inner := newRecording(3)
	wrapped := WithBreaker(Throttle(inner, 100, 10), circuitbreaker.DefaultConfig("sink"))

	r := NewRegistry(nil)
	require.NoError(t, r.Add(wrapped))
	assert.True(t, isConflictAdd(r, inner))

	r.Dispatch(context.Background(), testMessage(models.KindError, "x"))
	assert.Equal(t, 1, inner.opens)
	assert.Equal(t, 1, inner.received())

	r.RemoveAll()
	assert.Equal(t, 1, inner.closes)
}

func isConflictAdd(r *Registry, l Listener) bool {
	return r.Add(l) != nil
}

type checkedListener struct {
	*recordingListener
	err error
}

func (c checkedListener) Check(ctx context.Context) error {
	return c.err
}

func TestCheckUnwraps(t *testing.T) {
	down := errors.New("unreachable")
	l := Throttle(checkedListener{recordingListener: newRecording(4), err: down}, 10, 1)
	assert.ErrorIs(t, Check(context.Background(), l), down)
	assert.NoError(t, Check(context.Background(), newRecording(5)))
}
