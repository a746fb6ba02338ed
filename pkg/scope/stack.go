// Package scope tracks nested named scopes that group related messages.
//
// A Stack belongs to one goroutine or logical task. Stacks travel in a
// context.Context; Enter on a context derives a new context holding a private
// copy of the parent stack, so goroutines that share a parent context never
// observe each other's pushes.
package scope

import (
	"context"
	"sync"

	"diagflow/pkg/errors"
	"diagflow/pkg/models"
)

type Stack struct {
	mu     sync.Mutex
	frames []frame
	nextID uint64
}

// frame is one pushed scope. id lets a release func find its own push after
// other pops have happened.
type frame struct {
	scope models.Scope
	id    uint64
}

func NewStack() *Stack {
	return &Stack{}
}

// Enter pushes a scope whose depth is the new stack size.
func (s *Stack) Enter(name string) error {
	_, err := s.push(name)
	return err
}

func (s *Stack) push(name string) (uint64, error) {
	if name == "" {
		return 0, errors.ErrInvalidArgument.WithMessage("scope name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.frames = append(s.frames, frame{
		scope: models.Scope{Name: name, Depth: len(s.frames) + 1},
		id:    s.nextID,
	})
	return s.nextID, nil
}

// Exit pops the innermost scope. It is a no-op on an empty stack.
func (s *Stack) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// release pops the frame pushed as id together with anything still open above
// it. Once that frame is gone, whoever popped it, release does nothing.
func (s *Stack) release(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].id == id {
			s.frames = s.frames[:i]
			return
		}
	}
}

// Current returns a copy of the innermost scope, or nil.
func (s *Stack) Current() *models.Scope {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil
	}
	top := s.frames[len(s.frames)-1].scope
	return &top
}

func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Scoped pushes name and returns the matching pop. The pop only ever removes
// this push, so calling it after an Exit already took the scope off is a
// no-op. Callers defer it so the scope is left on every return path:
//
//	exit, err := stack.Scoped("load")
//	if err != nil { ... }
//	defer exit()
func (s *Stack) Scoped(name string) (func(), error) {
	id, err := s.push(name)
	if err != nil {
		return func() {}, err
	}
	return func() { s.release(id) }, nil
}

func (s *Stack) clone() *Stack {
	c := &Stack{}
	if s == nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.frames = make([]frame, len(s.frames), len(s.frames)+1)
	copy(c.frames, s.frames)
	c.nextID = s.nextID
	return c
}

type contextKey struct{}

func WithStack(ctx context.Context, s *Stack) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the stack carried by ctx, or nil.
func FromContext(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(contextKey{}).(*Stack)
	return s
}

// Current returns the innermost scope carried by ctx, or nil.
func Current(ctx context.Context) *models.Scope {
	return FromContext(ctx).Current()
}

// Enter derives a context whose stack is a copy of ctx's stack with name
// pushed. The returned func pops that scope and is safe to call more than once.
func Enter(ctx context.Context, name string) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if name == "" {
		return ctx, func() {}, errors.ErrInvalidArgument.WithMessage("scope name is required")
	}

	s := FromContext(ctx).clone()
	exit, err := s.Scoped(name)
	if err != nil {
		return ctx, func() {}, err
	}
	return WithStack(ctx, s), exit, nil
}

// Exit pops the innermost scope of the stack carried by ctx.
func Exit(ctx context.Context) {
	if s := FromContext(ctx); s != nil {
		s.Exit()
	}
}
