// Package counter keeps live instance counts per object type or named
// category and calls back when a count goes over its maximum.
package counter

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"diagflow/pkg/errors"
	"diagflow/pkg/metrics"
)

// Category is a snapshot of one counter. Name is empty for a category keyed
// by its type alone.
type Category struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Count    int    `json:"count"`
	MaxCount int    `json:"max_count,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Key is the name when set, the type otherwise.
func (c Category) Key() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Type
}

// ExceededFunc receives the category right after an increment took it over
// its maximum.
type ExceededFunc func(c Category)

type Option func(*Counter)

// WithAutoReset resets a category to zero after it is reported as exceeded.
func WithAutoReset(v bool) Option {
	return func(c *Counter) { c.autoReset = v }
}

func WithExceededFunc(fn ExceededFunc) Option {
	return func(c *Counter) { c.onExceeded = fn }
}

type Counter struct {
	mu         sync.Mutex
	categories map[string]*Category
	autoReset  bool
	onExceeded ExceededFunc
}

func New(opts ...Option) *Counter {
	c := &Counter{categories: make(map[string]*Category)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TypeName returns the package qualified name of v's type, looking through
// pointers: "example.com/shop/cart.Cart" for both a Cart and a *Cart.
func TypeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Add registers a category for typ. An empty name keys the category by typ;
// a non-empty name lets one type carry several categories. maxCount 0 means
// no maximum.
func (c *Counter) Add(typ, name string, maxCount int) error {
	if typ == "" {
		return errors.ErrInvalidArgument.WithMessage("counter type is required")
	}
	if maxCount < 0 {
		return errors.ErrInvalidArgument.WithMessage("maximum count must not be negative")
	}

	cat := &Category{Type: typ, Name: name, MaxCount: maxCount, Enabled: true}
	key := cat.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.categories[key]; exists {
		return errors.ErrConflict.WithMessage("counter %q already registered", key).WithDetail("counter", key)
	}
	c.categories[key] = cat
	metrics.SetObjectCount(key, 0)
	return nil
}

// AddType registers a category for the type of v.
func (c *Counter) AddType(v interface{}, name string, maxCount int) error {
	return c.Add(TypeName(v), name, maxCount)
}

func (c *Counter) Remove(typ, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(typ, name)
	if _, ok := c.categories[key]; !ok {
		return false
	}
	delete(c.categories, key)
	return true
}

func (c *Counter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.categories)
}

func lookupKey(typ, name string) string {
	if name != "" {
		return name
	}
	return typ
}

// matchLocked resolves the categories an operation on (typ, name) touches. A
// name selects that category only. Without a name the type's own category
// wins; a type registered only under names selects all of them.
func (c *Counter) matchLocked(typ, name string) []*Category {
	if name != "" {
		if cat, ok := c.categories[name]; ok {
			return []*Category{cat}
		}
		return nil
	}
	if cat, ok := c.categories[typ]; ok && cat.Name == "" {
		return []*Category{cat}
	}
	var out []*Category
	for _, cat := range c.categories {
		if cat.Type == typ {
			out = append(out, cat)
		}
	}
	return out
}

// Inc counts one more instance of obj. Disabled categories are left alone.
func (c *Counter) Inc(obj interface{}, name string) error {
	if obj == nil {
		return errors.ErrInvalidArgument.WithMessage("object is required")
	}

	var exceeded []Category
	c.mu.Lock()
	for _, cat := range c.matchLocked(TypeName(obj), name) {
		if !cat.Enabled {
			continue
		}
		cat.Count++
		if cat.MaxCount > 0 && cat.Count > cat.MaxCount {
			exceeded = append(exceeded, *cat)
			metrics.IncObjectCountExceeded(cat.Key())
			if c.autoReset {
				cat.Count = 0
			}
		}
		metrics.SetObjectCount(cat.Key(), cat.Count)
	}
	fn := c.onExceeded
	c.mu.Unlock()

	if fn != nil {
		for _, cat := range exceeded {
			fn(cat)
		}
	}
	return nil
}

// Dec counts one instance of obj less. Counts never go below zero.
func (c *Counter) Dec(obj interface{}, name string) error {
	if obj == nil {
		return errors.ErrInvalidArgument.WithMessage("object is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cat := range c.matchLocked(TypeName(obj), name) {
		if !cat.Enabled || cat.Count == 0 {
			continue
		}
		cat.Count--
		metrics.SetObjectCount(cat.Key(), cat.Count)
	}
	return nil
}

// Count returns the count of the category registered as (typ, name).
func (c *Counter) Count(typ, name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, ok := c.categories[lookupKey(typ, name)]
	if !ok {
		return 0, false
	}
	return cat.Count, true
}

func (c *Counter) Reset(typ, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cat := range c.matchLocked(typ, name) {
		cat.Count = 0
		metrics.SetObjectCount(cat.Key(), 0)
	}
}

func (c *Counter) SetEnabled(typ, name string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cat := range c.matchLocked(typ, name) {
		cat.Enabled = enabled
	}
}

func (c *Counter) Enabled(typ, name string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, ok := c.categories[lookupKey(typ, name)]
	if !ok {
		return false, false
	}
	return cat.Enabled, true
}

func (c *Counter) SetMaxCount(typ, name string, maxCount int) error {
	if maxCount < 0 {
		return errors.ErrInvalidArgument.WithMessage("maximum count must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(typ, name)
	cat, ok := c.categories[key]
	if !ok {
		return errors.ErrNotFound.WithMessage("counter %q not found", key).WithDetail("counter", key)
	}
	cat.MaxCount = maxCount
	return nil
}

// MaxCount returns 0 for unknown categories and for categories without a
// maximum.
func (c *Counter) MaxCount(typ, name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cat, ok := c.categories[lookupKey(typ, name)]; ok {
		return cat.MaxCount
	}
	return 0
}

// Categories returns a snapshot sorted by type, then name.
func (c *Counter) Categories() []Category {
	c.mu.Lock()
	out := make([]Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, *cat)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WriteSummary renders every category as a table followed by the number of
// counted types.
func (c *Counter) WriteSummary(w io.Writer) error {
	cats := c.Categories()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Object count summary")
	tw.Style().Format.Footer = text.FormatDefault
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.AppendHeader(table.Row{"Type", "Category", "Count", "Max", "Enabled"})
	for _, cat := range cats {
		limit := "-"
		if cat.MaxCount > 0 {
			limit = fmt.Sprint(cat.MaxCount)
		}
		name := cat.Name
		if name == "" {
			name = "-"
		}
		tw.AppendRow(table.Row{cat.Type, name, cat.Count, limit, cat.Enabled})
	}
	tw.AppendFooter(table.Row{"Counted types", "", len(cats), "", ""})
	tw.Render()
	return nil
}

// SaveSummary writes the summary to path, replacing the file.
func (c *Counter) SaveSummary(path string) error {
	if path == "" {
		return errors.ErrInvalidArgument.WithMessage("summary path is required")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := c.WriteSummary(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
