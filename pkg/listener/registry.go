package listener

import (
	"context"
	"reflect"
	"sync"
	"time"

	"diagflow/pkg/errors"
	"diagflow/pkg/logger"
	"diagflow/pkg/metrics"
	"diagflow/pkg/models"
)

// Registry is the ordered set of listeners. Mutations hold the write lock;
// Dispatch works on a snapshot so listeners may be added or removed while a
// message is in flight.
type Registry struct {
	mu        sync.RWMutex
	listeners []Listener

	// serializes lazy opens so a listener is opened once under contention
	openMu sync.Mutex

	logger logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Registry{logger: log}
}

// Add appends l. A listener whose id or instance is already registered is
// rejected with a conflict error.
func (r *Registry) Add(l Listener) error {
	if isNil(l) {
		return errors.ErrInvalidArgument.WithMessage("listener is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.listeners {
		if existing.ID() == l.ID() || sameInstance(existing, l) {
			return errors.ErrConflict.
				WithMessage("listener %d is already registered", l.ID()).
				WithDetail("id", l.ID())
		}
	}

	r.listeners = append(r.listeners, l)
	metrics.SetRegisteredListeners(len(r.listeners))
	return nil
}

// Remove closes and unregisters the listener with id. It reports whether the
// listener was present.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	var removed Listener
	for i, l := range r.listeners {
		if l.ID() == id {
			removed = l
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			break
		}
	}
	metrics.SetRegisteredListeners(len(r.listeners))
	r.mu.Unlock()

	if removed == nil {
		return false
	}
	r.close(removed)
	return true
}

// RemoveAll closes and unregisters every listener. Calling it on an empty
// registry does nothing.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	removed := r.listeners
	r.listeners = nil
	metrics.SetRegisteredListeners(0)
	r.mu.Unlock()

	for _, l := range removed {
		r.close(l)
	}
}

func (r *Registry) Get(id int) Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.listeners {
		if l.ID() == id {
			return l
		}
	}
	return nil
}

func (r *Registry) At(index int) Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.listeners) {
		return nil
	}
	return r.listeners[index]
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Listeners returns a snapshot in registration order.
func (r *Registry) Listeners() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// Dispatch hands msg to every enabled listener in registration order.
// Failures and panics are logged and counted; they never reach the caller and
// never stop delivery to the remaining listeners.
func (r *Registry) Dispatch(ctx context.Context, msg *models.Message) {
	for _, l := range r.Listeners() {
		if !l.Enabled() {
			continue
		}

		label := Label(l)
		if !l.IsOpen() {
			r.open(ctx, l, label)
		}

		start := time.Now()
		err := errors.Guard(func() error {
			return l.Dispatch(ctx, msg)
		})
		metrics.ObserveListenerDispatchDuration(label, time.Since(start))

		if err != nil {
			metrics.IncListenerDispatch(label, "failed")
			r.logger.WarnwCtx(ctx, "Listener dispatch failed",
				"listener", label,
				"message_id", msg.ID,
				"error", errors.Wrap(err, errors.ErrSinkFailure),
			)
			continue
		}
		metrics.IncListenerDispatch(label, "delivered")
	}
}

// open failures are logged and the dispatch is attempted anyway.
func (r *Registry) open(ctx context.Context, l Listener, label string) {
	r.openMu.Lock()
	defer r.openMu.Unlock()

	if l.IsOpen() {
		return
	}

	err := errors.Guard(func() error {
		return l.Open(ctx)
	})
	if err != nil {
		metrics.IncListenerOpenFailure(label)
		r.logger.WarnwCtx(ctx, "Listener open failed",
			"listener", label,
			"error", err,
		)
	}
}

func (r *Registry) close(l Listener) {
	err := errors.Guard(l.Close)
	if err != nil {
		r.logger.Warnw("Listener close failed",
			"listener", Label(l),
			"error", err,
		)
	}
}

func isNil(l Listener) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func sameInstance(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
