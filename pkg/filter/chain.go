package filter

import (
	"reflect"
	"sync"

	"diagflow/pkg/errors"
	"diagflow/pkg/metrics"
	"diagflow/pkg/models"
)

// Chain is the ordered filter registry. Registration order is evaluation order.
type Chain struct {
	mu      sync.RWMutex
	filters []Filter
}

func NewChain() *Chain {
	return &Chain{}
}

// Add appends f. A filter whose id or instance is already registered is
// rejected with a conflict error and the chain is left unchanged.
func (c *Chain) Add(f Filter) error {
	if isNil(f) {
		return errors.ErrInvalidArgument.WithMessage("filter is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.filters {
		if existing.ID() == f.ID() || sameInstance(existing, f) {
			return errors.ErrConflict.
				WithMessage("filter %d is already registered", f.ID()).
				WithDetail("id", f.ID())
		}
	}

	c.filters = append(c.filters, f)
	metrics.SetRegisteredFilters(len(c.filters))
	return nil
}

// Remove unregisters the filter with id and reports whether it was present.
func (c *Chain) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, f := range c.filters {
		if f.ID() == id {
			c.filters = append(c.filters[:i:i], c.filters[i+1:]...)
			metrics.SetRegisteredFilters(len(c.filters))
			return true
		}
	}
	return false
}

func (c *Chain) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filters = nil
	metrics.SetRegisteredFilters(0)
}

func (c *Chain) Get(id int) Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, f := range c.filters {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

func (c *Chain) At(index int) Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index < 0 || index >= len(c.filters) {
		return nil
	}
	return c.filters[index]
}

func (c *Chain) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters)
}

// Filters returns a snapshot in registration order.
func (c *Chain) Filters() []Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Filter, len(c.filters))
	copy(out, c.filters)
	return out
}

// Evaluate reports whether msg is excluded. See the package documentation for
// how implications combine.
func (c *Chain) Evaluate(msg *models.Message) bool {
	excluded := evaluate(c.Filters(), msg)
	if excluded {
		metrics.IncFilterEvaluation("excluded")
	} else {
		metrics.IncFilterEvaluation("passed")
	}
	return excluded
}

func evaluate(filters []Filter, msg *models.Message) bool {
	accSet, acc := false, false

	for _, f := range filters {
		if !f.Enabled() {
			continue
		}

		switch f.Implication() {
		case Or:
			if match(f, msg) {
				return true
			}
		default:
			if accSet && !acc {
				// a false accumulator can never turn true again
				continue
			}
			acc = match(f, msg)
			accSet = true
			if acc {
				return true
			}
		}
	}

	return false
}

// match treats a panicking filter as not matching.
func match(f Filter, msg *models.Message) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncFilterEvaluation("panic")
			matched = false
		}
	}()
	return f.Match(msg)
}

func isNil(f Filter) bool {
	if f == nil {
		return true
	}
	v := reflect.ValueOf(f)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func sameInstance(a, b Filter) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
