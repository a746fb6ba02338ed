// Package listener holds the sinks that receive messages which pass the
// filter chain, and the registry that fans messages out to them.
package listener

import (
	"context"
	"fmt"
	"sync/atomic"

	"diagflow/pkg/models"
)

// Listener is a sink. Open is called lazily by the Registry before the first
// dispatch; Dispatch may be called from any goroutine.
type Listener interface {
	ID() int
	Name() string
	Enabled() bool
	IsOpen() bool
	Open(ctx context.Context) error
	Close() error
	Dispatch(ctx context.Context, msg *models.Message) error
}

// Label identifies a listener in logs and metrics.
func Label(l Listener) string {
	return fmt.Sprintf("%s#%d", l.Name(), l.ID())
}

// Base carries the state every built-in listener shares. Listeners start
// enabled and closed.
type Base struct {
	id       int
	name     string
	disabled atomic.Bool
	open     atomic.Bool
	handled  atomic.Int64
}

func (b *Base) ID() int                { return b.id }
func (b *Base) Name() string           { return b.name }
func (b *Base) Enabled() bool          { return !b.disabled.Load() }
func (b *Base) SetEnabled(v bool)      { b.disabled.Store(!v) }
func (b *Base) IsOpen() bool           { return b.open.Load() }
func (b *Base) setOpen(v bool)         { b.open.Store(v) }
func (b *Base) HandledMessages() int64 { return b.handled.Load() }

// next returns the sequence number of the message being handled.
func (b *Base) next() int64 {
	return b.handled.Add(1) - 1
}

// Func adapts a function to a Listener with no open or close work.
type Func struct {
	Base
	fn func(ctx context.Context, msg *models.Message) error
}

func NewFunc(id int, name string, fn func(ctx context.Context, msg *models.Message) error) *Func {
	return &Func{Base: Base{id: id, name: name}, fn: fn}
}

func (f *Func) Open(ctx context.Context) error {
	f.setOpen(true)
	return nil
}

func (f *Func) Close() error {
	f.setOpen(false)
	return nil
}

func (f *Func) Dispatch(ctx context.Context, msg *models.Message) error {
	f.next()
	return f.fn(ctx, msg)
}
