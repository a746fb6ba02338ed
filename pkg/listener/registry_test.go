package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagflow/pkg/errors"
	"diagflow/pkg/logger"
	"diagflow/pkg/models"
)

type recordingListener struct {
	Base
	openErr     error
	dispatchErr error
	panics      bool

	mu     sync.Mutex
	opens  int
	closes int
	got    []*models.Message
}

func newRecording(id int) *recordingListener {
	return &recordingListener{Base: Base{id: id, name: "recording"}}
}

func (l *recordingListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opens++
	if l.openErr != nil {
		return l.openErr
	}
	l.setOpen(true)
	return nil
}

func (l *recordingListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	l.setOpen(false)
	return nil
}

func (l *recordingListener) Dispatch(ctx context.Context, msg *models.Message) error {
	if l.panics {
		panic("sink exploded")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, msg)
	return l.dispatchErr
}

func (l *recordingListener) received() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.got)
}

func testMessage(kind models.Kind, text string) *models.Message {
	return models.NewMessageBuilder().
		WithKind(kind).
		WithText(text).
		WithTimestamp(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)).
		WithOrigin(models.CallSite{
			File:       "/src/app/orders/service.go",
			Namespace:  "example.com/app/orders",
			Type:       "Service",
			Method:     "Place",
			Signature:  "example.com/app/orders.(*Service).Place",
			Line:       42,
			MethodKind: models.MethodPublic,
		}).
		Build()
}

func TestRegistryAddRejectsDuplicates(t *testing.T) {
	r := NewRegistry(logger.NopLogger())
	first := newRecording(1)
	require.NoError(t, r.Add(first))

	tests := []struct {
		name string
		l    Listener
	}{
		{"same id", newRecording(1)},
		{"same instance", first},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Add(tt.l)
			require.Error(t, err)
			assert.True(t, apperrors.IsConflict(err))
			assert.Equal(t, 1, r.Count())
		})
	}
}

func TestRegistryAddNil(t *testing.T) {
	r := NewRegistry(nil)

	var typedNil *recordingListener
	assert.True(t, apperrors.IsInvalidArgument(r.Add(nil)))
	assert.True(t, apperrors.IsInvalidArgument(r.Add(typedNil)))
	assert.Zero(t, r.Count())
}

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry(nil)
	a, b := newRecording(10), newRecording(20)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	assert.Same(t, b, r.Get(20))
	assert.Nil(t, r.Get(30))
	assert.Same(t, a, r.At(0))
	assert.Nil(t, r.At(2))
	assert.Nil(t, r.At(-1))
	assert.Len(t, r.Listeners(), 2)
}

func TestRegistryDispatchSkipsDisabled(t *testing.T) {
	r := NewRegistry(nil)
	enabled, disabled := newRecording(1), newRecording(2)
	disabled.SetEnabled(false)
	require.NoError(t, r.Add(enabled))
	require.NoError(t, r.Add(disabled))

	r.Dispatch(context.Background(), testMessage(models.KindWarning, "x"))

	assert.Equal(t, 1, enabled.received())
	assert.Zero(t, disabled.received())
	assert.Zero(t, disabled.opens)
}

func TestRegistryOpensLazilyOnce(t *testing.T) {
	r := NewRegistry(nil)
	l := newRecording(1)
	require.NoError(t, r.Add(l))
	assert.False(t, l.IsOpen())

	for i := 0; i < 3; i++ {
		r.Dispatch(context.Background(), testMessage(models.KindError, "boom"))
	}

	assert.True(t, l.IsOpen())
	assert.Equal(t, 1, l.opens)
	assert.Equal(t, 3, l.received())
}

func TestRegistryOpenFailureStillDispatches(t *testing.T) {
	r := NewRegistry(nil)
	l := newRecording(1)
	l.openErr = errors.New("connection refused")
	require.NoError(t, r.Add(l))

	r.Dispatch(context.Background(), testMessage(models.KindError, "boom"))
	r.Dispatch(context.Background(), testMessage(models.KindError, "boom"))

	assert.Equal(t, 2, l.opens)
	assert.Equal(t, 2, l.received())
}

func TestRegistryFailuresDoNotStopDelivery(t *testing.T) {
	r := NewRegistry(nil)
	failing := newRecording(1)
	failing.dispatchErr = errors.New("disk full")
	panicking := newRecording(2)
	panicking.panics = true
	last := newRecording(3)

	for _, l := range []Listener{failing, panicking, last} {
		require.NoError(t, r.Add(l))
	}

	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), testMessage(models.KindError, "boom"))
	})
	assert.Equal(t, 1, failing.received())
	assert.Equal(t, 1, last.received())
}

func TestRegistryRemoveClosesListener(t *testing.T) {
	r := NewRegistry(nil)
	l := newRecording(5)
	require.NoError(t, r.Add(l))
	r.Dispatch(context.Background(), testMessage(models.KindWarning, "x"))

	assert.True(t, r.Remove(5))
	assert.Equal(t, 1, l.closes)
	assert.False(t, l.IsOpen())
	assert.Zero(t, r.Count())

	assert.False(t, r.Remove(5))
}

func TestRegistryRemoveAllIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	a, b := newRecording(1), newRecording(2)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	r.RemoveAll()
	assert.Zero(t, r.Count())
	assert.Equal(t, 1, a.closes)
	assert.Equal(t, 1, b.closes)

	assert.NotPanics(t, r.RemoveAll)
	assert.Zero(t, r.Count())
}

func TestRegistryConcurrentDispatch(t *testing.T) {
	r := NewRegistry(nil)
	l := newRecording(1)
	require.NoError(t, r.Add(l))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Dispatch(context.Background(), testMessage(models.KindWarning, "x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, l.opens)
	assert.Equal(t, 400, l.received())
}

func TestFuncListener(t *testing.T) {
	var got string
	l := NewFunc(9, "func", func(ctx context.Context, msg *models.Message) error {
		got = msg.Text
		return nil
	})

	r := NewRegistry(nil)
	require.NoError(t, r.Add(l))
	r.Dispatch(context.Background(), testMessage(models.KindUnknown, "hello"))

	assert.Equal(t, "hello", got)
	assert.Equal(t, int64(1), l.HandledMessages())
	assert.Equal(t, "func#9", Label(l))
}
