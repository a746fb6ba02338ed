package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		retried = append(retried, attempt)
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestPermanentStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("bad credentials")
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return Permanent(cause)
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(5), func() error {
		calls++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
