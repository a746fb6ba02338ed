// Package settings resolves the per-call policy toggles of the pipeline.
//
// Resolution walks four levels, each field independently: an override carried
// by the reporting context, a method override, a type override, and finally the
// global defaults. NotifyListeners and NotifyNotifier have no global flag and
// default to true.
package settings

import (
	"context"
	"sync"

	"diagflow/pkg/models"
)

// Effective is the resolved policy for one call.
type Effective struct {
	Enabled               bool
	AssertShouldThrow     bool
	ShouldStore           bool
	ShouldCaptureStack    bool
	ShouldPlatformLog     bool
	ShouldNotifyListeners bool
	ShouldNotifyNotifier  bool
}

// Defaults are the process-wide toggles.
type Defaults struct {
	Enabled           bool `mapstructure:"enabled" json:"enabled"`
	AssertShouldThrow bool `mapstructure:"assert_should_throw" json:"assert_should_throw"`
	Store             bool `mapstructure:"store" json:"store"`
	CaptureStack      bool `mapstructure:"capture_stack" json:"capture_stack"`
	PlatformLog       bool `mapstructure:"platform_log" json:"platform_log"`
}

func DefaultDefaults() Defaults {
	return Defaults{
		Enabled: true,
		Store:   true,
	}
}

// Override sets any subset of the seven toggles. Nil fields inherit.
type Override struct {
	Enabled               *bool
	AssertShouldThrow     *bool
	ShouldStore           *bool
	ShouldCaptureStack    *bool
	ShouldPlatformLog     *bool
	ShouldNotifyListeners *bool
	ShouldNotifyNotifier  *bool
}

func Bool(v bool) *bool {
	return &v
}

func (o Override) IsZero() bool {
	return o == Override{}
}

// merge fills the unset fields of o from fallback.
func (o Override) merge(fallback Override) Override {
	pick := func(a, b *bool) *bool {
		if a != nil {
			return a
		}
		return b
	}
	return Override{
		Enabled:               pick(o.Enabled, fallback.Enabled),
		AssertShouldThrow:     pick(o.AssertShouldThrow, fallback.AssertShouldThrow),
		ShouldStore:           pick(o.ShouldStore, fallback.ShouldStore),
		ShouldCaptureStack:    pick(o.ShouldCaptureStack, fallback.ShouldCaptureStack),
		ShouldPlatformLog:     pick(o.ShouldPlatformLog, fallback.ShouldPlatformLog),
		ShouldNotifyListeners: pick(o.ShouldNotifyListeners, fallback.ShouldNotifyListeners),
		ShouldNotifyNotifier:  pick(o.ShouldNotifyNotifier, fallback.ShouldNotifyNotifier),
	}
}

func (o Override) apply(d Defaults) Effective {
	value := func(p *bool, def bool) bool {
		if p != nil {
			return *p
		}
		return def
	}
	return Effective{
		Enabled:               value(o.Enabled, d.Enabled),
		AssertShouldThrow:     value(o.AssertShouldThrow, d.AssertShouldThrow),
		ShouldStore:           value(o.ShouldStore, d.Store),
		ShouldCaptureStack:    value(o.ShouldCaptureStack, d.CaptureStack),
		ShouldPlatformLog:     value(o.ShouldPlatformLog, d.PlatformLog),
		ShouldNotifyListeners: value(o.ShouldNotifyListeners, true),
		ShouldNotifyNotifier:  value(o.ShouldNotifyNotifier, true),
	}
}

type methodKey struct {
	typ    string
	method string
}

type Resolver struct {
	mu       sync.RWMutex
	defaults Defaults
	types    map[string]Override
	methods  map[methodKey]Override
}

func NewResolver(defaults Defaults) *Resolver {
	return &Resolver{
		defaults: defaults,
		types:    make(map[string]Override),
		methods:  make(map[methodKey]Override),
	}
}

func (r *Resolver) Defaults() Defaults {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

func (r *Resolver) SetDefaults(d Defaults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = d
}

// UpdateDefaults applies fn to the defaults under the write lock.
func (r *Resolver) UpdateDefaults(fn func(*Defaults)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.defaults)
}

// SetTypeOverride registers an override for every method of typeKey, which
// is the package path qualified type name as produced by CallSite.TypeKey.
func (r *Resolver) SetTypeOverride(typeKey string, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typeKey] = o
}

func (r *Resolver) SetMethodOverride(typeKey, method string, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[methodKey{typ: typeKey, method: method}] = o
}

func (r *Resolver) RemoveTypeOverride(typeKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, typeKey)
}

func (r *Resolver) RemoveMethodOverride(typeKey, method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, methodKey{typ: typeKey, method: method})
}

func (r *Resolver) ClearOverrides() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]Override)
	r.methods = make(map[methodKey]Override)
}

// Resolve computes the effective settings for a call made from site.
func (r *Resolver) Resolve(ctx context.Context, site models.CallSite) Effective {
	r.mu.RLock()
	typeKey := site.TypeKey()
	method := r.methods[methodKey{typ: typeKey, method: site.Method}]
	typ := r.types[typeKey]
	defaults := r.defaults
	r.mu.RUnlock()

	return OverrideFromContext(ctx).merge(method.merge(typ)).apply(defaults)
}

type contextKey struct{}

// WithOverride threads an explicit override through ctx. It wins over every
// registered override for calls made with the returned context.
func WithOverride(ctx context.Context, o Override) context.Context {
	return context.WithValue(ctx, contextKey{}, o.merge(OverrideFromContext(ctx)))
}

func OverrideFromContext(ctx context.Context) Override {
	if ctx == nil {
		return Override{}
	}
	o, _ := ctx.Value(contextKey{}).(Override)
	return o
}
