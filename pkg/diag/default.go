package diag

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"diagflow/pkg/models"
)

var (
	std     atomic.Pointer[Pipeline]
	stdOnce sync.Once
)

// Default returns the process-wide pipeline used by the package-level
// functions, creating it with default options on first use.
func Default() *Pipeline {
	if p := std.Load(); p != nil {
		return p
	}
	stdOnce.Do(func() {
		p, _ := New()
		std.CompareAndSwap(nil, p)
	})
	return std.Load()
}

// SetDefault replaces the process-wide pipeline.
func SetDefault(p *Pipeline) {
	if p != nil {
		std.Store(p)
	}
}

func Assert(ctx context.Context, cond bool, format string, args ...interface{}) error {
	return Default().Assert(ctx, cond, format, args...)
}

func AssertNotNull(ctx context.Context, value interface{}, format string, args ...interface{}) error {
	return Default().AssertNotNull(ctx, value, format, args...)
}

func AssertType(ctx context.Context, value interface{}, typ reflect.Type, format string, args ...interface{}) error {
	return Default().AssertType(ctx, value, typ, format, args...)
}

// AssertTypeOf is AssertType with the type given as a type parameter.
func AssertTypeOf[T any](ctx context.Context, value interface{}, format string, args ...interface{}) error {
	return Default().AssertType(ctx, value, reflect.TypeFor[T](), format, args...)
}

func Report(ctx context.Context, kind models.Kind, format string, args ...interface{}) {
	Default().Report(ctx, kind, format, args...)
}

func ReportWarning(ctx context.Context, format string, args ...interface{}) {
	Default().ReportWarning(ctx, format, args...)
}

func ReportError(ctx context.Context, format string, args ...interface{}) {
	Default().ReportError(ctx, format, args...)
}

func ReportData(ctx context.Context, kind models.PayloadKind, payload interface{}, format string, args ...interface{}) {
	Default().ReportData(ctx, kind, payload, format, args...)
}

func ReportText(ctx context.Context, text string, format string, args ...interface{}) {
	Default().ReportText(ctx, text, format, args...)
}

func ReportBinary(ctx context.Context, data []byte, format string, args ...interface{}) {
	Default().ReportBinary(ctx, data, format, args...)
}

func ReportJSON(ctx context.Context, v interface{}, format string, args ...interface{}) {
	Default().ReportJSON(ctx, v, format, args...)
}

func EnterScope(ctx context.Context, name string) (context.Context, func(), error) {
	return Default().EnterScope(ctx, name)
}

func ExitScope(ctx context.Context) {
	Default().ExitScope(ctx)
}

func CurrentScope(ctx context.Context) *models.Scope {
	return Default().CurrentScope(ctx)
}
