// Package perf times named operations across repeated runs and reports runs
// that take longer than allowed.
package perf

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"diagflow/pkg/errors"
	"diagflow/pkg/logger"
)

// Reporter receives a warning for every iteration that exceeds its event's
// maximum time. *diag.Pipeline satisfies it.
type Reporter interface {
	ReportWarning(ctx context.Context, format string, args ...interface{})
}

type Option func(*Manager)

func WithReporter(r Reporter) Option {
	return func(m *Manager) { m.reporter = r }
}

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) { m.logger = log }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.clock = now }
}

type Manager struct {
	mu       sync.RWMutex
	events   map[string]*Event
	reporter Reporter
	logger   logger.Logger
	clock    func() time.Time
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		events: make(map[string]*Event),
		logger: logger.NopLogger(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) now() time.Time {
	return m.clock()
}

// Add registers an event. With start set the first iteration begins at once.
func (m *Manager) Add(ctx context.Context, name string, start bool) (*Event, error) {
	if name == "" {
		return nil, errors.ErrInvalidArgument.WithMessage("event name is required")
	}

	m.mu.Lock()
	if _, exists := m.events[name]; exists {
		m.mu.Unlock()
		return nil, errors.ErrConflict.WithMessage("event %q already registered", name).WithDetail("event", name)
	}
	e := newEvent(name, m)
	m.events[name] = e
	m.mu.Unlock()

	if start {
		e.Start(ctx)
	}
	return e, nil
}

// Get returns the named event, or nil.
func (m *Manager) Get(name string) *Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[name]
}

func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[name]
	if !ok {
		return false
	}
	e.mu.Lock()
	e.stopTimerLocked()
	e.mu.Unlock()
	delete(m.events, name)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Events returns the registered events sorted by name.
func (m *Manager) Events() []*Event {
	m.mu.RLock()
	out := make([]*Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Start begins an iteration of the named event. Unknown names are ignored
// and return false.
func (m *Manager) Start(ctx context.Context, name string) bool {
	e := m.Get(name)
	if e == nil {
		return false
	}
	e.Start(ctx)
	return true
}

func (m *Manager) StartTimed(ctx context.Context, name string, d time.Duration, fn ElapsedFunc) bool {
	e := m.Get(name)
	if e == nil {
		return false
	}
	e.StartTimed(ctx, d, fn)
	return true
}

// Stop ends the running iteration of the named event and returns its
// duration. ok is false for unknown names and idle events.
func (m *Manager) Stop(ctx context.Context, name string) (time.Duration, bool) {
	e := m.Get(name)
	if e == nil {
		return 0, false
	}
	it, ok := e.Stop(ctx)
	if !ok {
		return 0, false
	}
	return it.Duration(), true
}

// Time starts the named event, registering it if needed, and returns the
// matching stop for a defer:
//
//	defer perfs.Time(ctx, "import")()
func (m *Manager) Time(ctx context.Context, name string) func() {
	e := m.Get(name)
	if e == nil {
		var err error
		// lost a race with another registration when err is a conflict
		if e, err = m.Add(ctx, name, false); err != nil {
			e = m.Get(name)
		}
		if e == nil {
			m.logger.WarnwCtx(ctx, "Failed to register performance event", "event", name, "error", err)
			return func() {}
		}
	}
	e.Start(ctx)
	return func() { e.Stop(ctx) }
}

func (m *Manager) Hit(name string) {
	if e := m.Get(name); e != nil {
		e.Hit()
	}
}

func (m *Manager) reportExceeded(ctx context.Context, name string, d, maxTime time.Duration) {
	m.logger.WarnwCtx(ctx, "Performance event exceeded maximum time",
		"event", name,
		"duration_ms", d.Milliseconds(),
		"max_ms", maxTime.Milliseconds(),
	)
	if m.reporter != nil {
		m.reporter.ReportWarning(ctx, "Operation %s (duration = %s) exceeded maximum time of %s", name, d, maxTime)
	}
}

// EventSummary is the serializable view of an event.
type EventSummary struct {
	Name       string        `json:"name"`
	MaxTime    time.Duration `json:"max_time,omitempty"`
	Running    bool          `json:"running"`
	Average    time.Duration `json:"average,omitempty"`
	Iterations []Iteration   `json:"iterations"`
}

func (m *Manager) Summaries() []EventSummary {
	events := m.Events()
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		avg, _ := e.AverageDuration()
		out = append(out, EventSummary{
			Name:       e.Name(),
			MaxTime:    e.MaxTime(),
			Running:    e.Running(),
			Average:    avg,
			Iterations: e.Iterations(),
		})
	}
	return out
}

// WriteSummary renders one table per event listing its iterations.
func (m *Manager) WriteSummary(w io.Writer) error {
	summaries := m.Summaries()
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No performance events registered.")
		return err
	}

	for _, s := range summaries {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.Style().Format.Footer = text.FormatDefault

		limit := "not set"
		if s.MaxTime > 0 {
			limit = s.MaxTime.String()
		}
		tw.SetTitle(fmt.Sprintf("%s (maximum time: %s)", s.Name, limit))
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		tw.AppendHeader(table.Row{"#", "Duration", "Hits", "Hits/s", "Heap delta"})

		for _, it := range s.Iterations {
			rate := "n/a"
			if hps := it.HitsPerSecond(); !math.IsNaN(hps) {
				rate = fmt.Sprintf("%.2f", hps)
			}
			tw.AppendRow(table.Row{it.Number + 1, it.Duration().String(), it.Hits, rate, it.HeapDelta()})
		}
		if len(s.Iterations) == 0 {
			tw.AppendRow(table.Row{"-", "-", "-", "-", "-"})
			tw.AppendFooter(table.Row{"No iterations performed", "", "", "", ""})
		} else {
			tw.AppendFooter(table.Row{"Average", s.Average.String(), "", "", ""})
		}
		tw.Render()
	}
	return nil
}

// SaveSummary writes the summary to path, replacing the file.
func (m *Manager) SaveSummary(path string) error {
	if path == "" {
		return errors.ErrInvalidArgument.WithMessage("summary path is required")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := m.WriteSummary(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
