package health

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type namedCheck struct {
	checker  Checker
	critical bool
}

// CheckerRegistry aggregates sink health. A failing critical checker makes
// the whole report unhealthy; a failing optional one only degrades it.
type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []namedCheck
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.add(checker, true)
}

func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.add(checker, false)
}

func (r *CheckerRegistry) add(checker Checker, critical bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, namedCheck{checker: checker, critical: critical})
}

func (r *CheckerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := make([]namedCheck, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	overall := StatusHealthy

	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.checker.Check(cctx)
		cancel()

		result := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
		if err != nil {
			result.Message = err.Error()
			if c.critical {
				result.Status = StatusUnhealthy
				overall = StatusUnhealthy
			} else {
				result.Status = StatusDegraded
				if overall == StatusHealthy {
					overall = StatusDegraded
				}
			}
		}
		results[c.checker.Name()] = result
	}

	return Health{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewCheckerFunc(name string, fn func(ctx context.Context) error) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (c *CheckerFunc) Name() string {
	return c.name
}

func (c *CheckerFunc) Check(ctx context.Context) error {
	return c.fn(ctx)
}
