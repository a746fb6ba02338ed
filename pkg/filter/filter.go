// Package filter decides which messages are withheld from listeners.
//
// A Filter matches a message when it wants the message excluded. The chain
// combines matches by each filter's implication: an OR filter that matches
// excludes the message at once; AND filters fold their answers into an
// accumulator that starts unset, and the message is excluded as soon as the
// accumulator is true. A message no filter excludes reaches the listeners.
package filter

import (
	"strings"
	"sync/atomic"

	"diagflow/pkg/errors"
	"diagflow/pkg/models"
)

type Implication string

const (
	And Implication = "and"
	Or  Implication = "or"
)

func ParseImplication(s string) (Implication, error) {
	switch Implication(strings.ToLower(strings.TrimSpace(s))) {
	case And, "":
		return And, nil
	case Or:
		return Or, nil
	}
	return "", errors.ErrInvalidArgument.WithMessage("unknown filter implication %q", s)
}

type Filter interface {
	ID() int
	Enabled() bool
	Implication() Implication
	// Match reports whether the filter votes to exclude msg.
	Match(msg *models.Message) bool
}

// Base carries the registry fields shared by the built-in filters. Filters
// start enabled.
type Base struct {
	id          int
	implication Implication
	disabled    atomic.Bool
}

func (b *Base) ID() int                  { return b.id }
func (b *Base) Implication() Implication { return b.implication }
func (b *Base) Enabled() bool            { return !b.disabled.Load() }
func (b *Base) SetEnabled(v bool)        { b.disabled.Store(!v) }

// Func adapts a plain predicate.
type Func struct {
	Base
	fn func(*models.Message) bool
}

func NewFunc(id int, implication Implication, fn func(*models.Message) bool) *Func {
	return &Func{Base: Base{id: id, implication: implication}, fn: fn}
}

func (f *Func) Match(msg *models.Message) bool {
	return f.fn(msg)
}

// KindFilter matches messages of one kind.
type KindFilter struct {
	Base
	kind models.Kind
}

func NewKindFilter(id int, implication Implication, kind models.Kind) *KindFilter {
	return &KindFilter{Base: Base{id: id, implication: implication}, kind: kind}
}

func (f *KindFilter) Kind() models.Kind { return f.kind }

func (f *KindFilter) Match(msg *models.Message) bool {
	return msg.Kind == f.kind
}

// SiteField selects the origin call-site field a SiteFilter inspects.
type SiteField string

const (
	FieldNamespace SiteField = "namespace"
	FieldType      SiteField = "type"
	FieldMethod    SiteField = "method"
)

// SiteFilter matches on the origin call site. A pattern ending in "*" is a
// prefix match, anything else must match exactly.
type SiteFilter struct {
	Base
	field   SiteField
	pattern string
}

func NewNamespaceFilter(id int, implication Implication, pattern string) *SiteFilter {
	return &SiteFilter{Base: Base{id: id, implication: implication}, field: FieldNamespace, pattern: pattern}
}

// NewTypeFilter matches the package qualified type name (CallSite.TypeKey).
func NewTypeFilter(id int, implication Implication, pattern string) *SiteFilter {
	return &SiteFilter{Base: Base{id: id, implication: implication}, field: FieldType, pattern: pattern}
}

// NewMethodFilter matches the fully qualified method (CallSite.MethodKey).
func NewMethodFilter(id int, implication Implication, pattern string) *SiteFilter {
	return &SiteFilter{Base: Base{id: id, implication: implication}, field: FieldMethod, pattern: pattern}
}

func (f *SiteFilter) Field() SiteField { return f.field }
func (f *SiteFilter) Pattern() string  { return f.pattern }

func (f *SiteFilter) Match(msg *models.Message) bool {
	var value string
	switch f.field {
	case FieldNamespace:
		value = msg.Origin.Namespace
	case FieldType:
		value = msg.Origin.TypeKey()
	case FieldMethod:
		value = msg.Origin.MethodKey()
	}
	if prefix, ok := strings.CutSuffix(f.pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}
	return value == f.pattern
}
