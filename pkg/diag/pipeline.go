// Package diag is the reporting entry point. A Pipeline resolves the policy
// for each call site, builds the message, stores it, runs the filter chain
// and fans the message out to listeners, the platform log and the notifier.
//
// All work happens on the reporting goroutine. Scopes travel in the context
// passed to each call.
package diag

import (
	"context"
	"sync"

	"diagflow/pkg/callsite"
	"diagflow/pkg/filter"
	"diagflow/pkg/listener"
	"diagflow/pkg/logger"
	"diagflow/pkg/logging"
	"diagflow/pkg/models"
	"diagflow/pkg/scope"
	"diagflow/pkg/settings"
	"diagflow/pkg/store"
	"diagflow/pkg/strtable"
)

const pkgPath = "diagflow/pkg/diag"

type Pipeline struct {
	name      string
	logger    logger.Logger
	resolver  *settings.Resolver
	filters   *filter.Chain
	listeners *listener.Registry
	store     *store.Store
	strings   *strtable.Table
	capturer  *callsite.Capturer
	platform  PlatformLogger

	mu       sync.RWMutex
	color    models.Color
	notifier Notifier
}

type options struct {
	name     string
	logger   logger.Logger
	defaults settings.Defaults
	capacity int
	strings  *strtable.Table
	platform PlatformLogger
	notifier Notifier
	skip     []string
	color    models.Color
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

func WithDefaults(d settings.Defaults) Option {
	return func(o *options) {
		o.defaults = d
	}
}

// WithCapacity sets the store capacity. New fails for n <= 0.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

func WithStringTable(t *strtable.Table) Option {
	return func(o *options) {
		o.strings = t
	}
}

// WithPlatformLogger replaces the sink used when platform logging is on.
func WithPlatformLogger(pl PlatformLogger) Option {
	return func(o *options) {
		o.platform = pl
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithSkipPackages adds packages whose frames never count as the origin of a
// report, such as a host application's own logging helpers.
func WithSkipPackages(pkgs ...string) Option {
	return func(o *options) {
		o.skip = append(o.skip, pkgs...)
	}
}

func WithColor(c models.Color) Option {
	return func(o *options) {
		o.color = c
	}
}

func New(opts ...Option) (*Pipeline, error) {
	o := options{
		name:     "default",
		defaults: settings.DefaultDefaults(),
		capacity: store.DefaultCapacity,
		color:    models.DefaultColor,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logger.NopLogger()
	}
	if o.strings == nil {
		o.strings = strtable.New()
	}
	if o.platform == nil {
		o.platform = NewLoggerPlatform(o.logger)
	}

	st, err := store.NewWithCapacity(o.capacity)
	if err != nil {
		return nil, err
	}

	skip := append([]string{pkgPath, "diagflow/pkg/callsite", "diagflow/pkg/perf", "diagflow/pkg/counter"}, o.skip...)

	return &Pipeline{
		name:      o.name,
		logger:    o.logger,
		resolver:  settings.NewResolver(o.defaults),
		filters:   filter.NewChain(),
		listeners: listener.NewRegistry(o.logger),
		store:     st,
		strings:   o.strings,
		capturer:  callsite.NewCapturer(skip...),
		platform:  o.platform,
		color:     o.color,
		notifier:  o.notifier,
	}, nil
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) logCtx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logging.GetPipelineName(ctx) == "" {
		ctx = logging.WithPipelineName(ctx, p.name)
	}
	return ctx
}

// Resolver exposes the settings resolver for registering overrides.
func (p *Pipeline) Resolver() *settings.Resolver {
	return p.resolver
}

func (p *Pipeline) StringTable() *strtable.Table {
	return p.strings
}

// Close closes and removes every listener.
func (p *Pipeline) Close() error {
	p.listeners.RemoveAll()
	return nil
}

// Listeners

func (p *Pipeline) AddListener(l listener.Listener) error {
	return p.listeners.Add(l)
}

func (p *Pipeline) RemoveListener(id int) bool {
	return p.listeners.Remove(id)
}

func (p *Pipeline) RemoveAllListeners() {
	p.listeners.RemoveAll()
}

func (p *Pipeline) Listener(id int) listener.Listener {
	return p.listeners.Get(id)
}

func (p *Pipeline) ListenerAt(index int) listener.Listener {
	return p.listeners.At(index)
}

func (p *Pipeline) ListenerCount() int {
	return p.listeners.Count()
}

func (p *Pipeline) Listeners() []listener.Listener {
	return p.listeners.Listeners()
}

// Filters

func (p *Pipeline) AddFilter(f filter.Filter) error {
	return p.filters.Add(f)
}

func (p *Pipeline) RemoveFilter(id int) bool {
	return p.filters.Remove(id)
}

func (p *Pipeline) RemoveAllFilters() {
	p.filters.RemoveAll()
}

func (p *Pipeline) Filter(id int) filter.Filter {
	return p.filters.Get(id)
}

func (p *Pipeline) FilterAt(index int) filter.Filter {
	return p.filters.At(index)
}

func (p *Pipeline) FilterCount() int {
	return p.filters.Count()
}

func (p *Pipeline) Filters() []filter.Filter {
	return p.filters.Filters()
}

// Store

func (p *Pipeline) SetStoreEnabled(v bool) {
	p.resolver.UpdateDefaults(func(d *settings.Defaults) { d.Store = v })
}

// SetCapacity fails for n <= 0 and leaves the capacity unchanged.
func (p *Pipeline) SetCapacity(n int) error {
	return p.store.SetCapacity(n)
}

func (p *Pipeline) Capacity() int {
	return p.store.Capacity()
}

func (p *Pipeline) ClearStore() {
	p.store.Clear()
}

func (p *Pipeline) StoredCount() int {
	return p.store.Count()
}

func (p *Pipeline) StoredAt(index int) *models.Message {
	return p.store.At(index)
}

// Messages returns the stored messages, oldest first.
func (p *Pipeline) Messages() []*models.Message {
	return p.store.Messages()
}

// Global toggles

func (p *Pipeline) Defaults() settings.Defaults {
	return p.resolver.Defaults()
}

func (p *Pipeline) SetEnabled(v bool) {
	p.resolver.UpdateDefaults(func(d *settings.Defaults) { d.Enabled = v })
}

func (p *Pipeline) SetAssertShouldThrow(v bool) {
	p.resolver.UpdateDefaults(func(d *settings.Defaults) { d.AssertShouldThrow = v })
}

func (p *Pipeline) SetCaptureStack(v bool) {
	p.resolver.UpdateDefaults(func(d *settings.Defaults) { d.CaptureStack = v })
}

func (p *Pipeline) SetPlatformLog(v bool) {
	p.resolver.UpdateDefaults(func(d *settings.Defaults) { d.PlatformLog = v })
}

// Scopes

// EnterScope returns a context carrying name as the innermost scope and a
// func that leaves it.
func (p *Pipeline) EnterScope(ctx context.Context, name string) (context.Context, func(), error) {
	return scope.Enter(ctx, name)
}

func (p *Pipeline) ExitScope(ctx context.Context) {
	scope.Exit(ctx)
}

func (p *Pipeline) CurrentScope(ctx context.Context) *models.Scope {
	return scope.Current(ctx)
}

// Color

func (p *Pipeline) Color() models.Color {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color
}

// SetColor tags subsequent messages with c.
func (p *Pipeline) SetColor(c models.Color) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color = c
}

func (p *Pipeline) ResetColor() {
	p.SetColor(models.DefaultColor)
}

// Notifier

func (p *Pipeline) Notifier() Notifier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.notifier
}

func (p *Pipeline) SetNotifier(n Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
}

type Stats struct {
	Name      string            `json:"name"`
	Stored    int               `json:"stored"`
	Capacity  int               `json:"capacity"`
	Listeners int               `json:"listeners"`
	Filters   int               `json:"filters"`
	Defaults  settings.Defaults `json:"defaults"`
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Name:      p.name,
		Stored:    p.store.Count(),
		Capacity:  p.store.Capacity(),
		Listeners: p.listeners.Count(),
		Filters:   p.filters.Count(),
		Defaults:  p.resolver.Defaults(),
	}
}
