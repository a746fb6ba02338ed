package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"diagflow/pkg/callsite"
	"diagflow/pkg/errors"
	"diagflow/pkg/logging"
	"diagflow/pkg/metrics"
	"diagflow/pkg/models"
	"diagflow/pkg/scope"
	"diagflow/pkg/settings"
)

// Texts used by the assert family when the caller gives no format.
const (
	DefaultAssertText     = "Assertion failed"
	DefaultAssertNullText = "Object is null"
	DefaultAssertTypeText = "Object type assertion failed"
)

type call struct {
	kind        models.Kind
	format      string
	args        []interface{}
	fallback    string
	payloadKind models.PayloadKind
	payload     interface{}
}

func (p *Pipeline) resolve(ctx context.Context) (models.CallSite, settings.Effective) {
	site, _ := p.capturer.Origin()
	return site, p.resolver.Resolve(ctx, site)
}

// Assert reports an error when cond is false. The returned error is non-nil
// only when the assertion failed and AssertShouldThrow is in effect; it is
// returned after the message was stored and dispatched.
func (p *Pipeline) Assert(ctx context.Context, cond bool, format string, args ...interface{}) error {
	site, eff := p.resolve(ctx)
	if !eff.Enabled {
		metrics.IncReported(string(models.KindError), "suppressed")
		return nil
	}
	if cond {
		return nil
	}
	return p.assertFailed(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, fallback: DefaultAssertText,
	})
}

// AssertNotNull fails for nil interfaces and nil pointers, maps, slices,
// channels and funcs.
func (p *Pipeline) AssertNotNull(ctx context.Context, value interface{}, format string, args ...interface{}) error {
	site, eff := p.resolve(ctx)
	if !eff.Enabled {
		metrics.IncReported(string(models.KindError), "suppressed")
		return nil
	}
	if !isNil(value) {
		return nil
	}
	return p.assertFailed(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, fallback: DefaultAssertNullText,
	})
}

// AssertType fails when value is not assignable to typ. A nil value or nil
// typ is not checked.
func (p *Pipeline) AssertType(ctx context.Context, value interface{}, typ reflect.Type, format string, args ...interface{}) error {
	if value == nil || typ == nil {
		return nil
	}

	site, eff := p.resolve(ctx)
	if !eff.Enabled {
		metrics.IncReported(string(models.KindError), "suppressed")
		return nil
	}
	if reflect.TypeOf(value).AssignableTo(typ) {
		return nil
	}
	return p.assertFailed(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, fallback: DefaultAssertTypeText,
	})
}

func (p *Pipeline) assertFailed(ctx context.Context, site models.CallSite, eff settings.Effective, c call) error {
	msg, ok := p.emit(ctx, site, eff, c)
	if !ok || !eff.AssertShouldThrow {
		return nil
	}
	metrics.AssertionSignalsTotal.Inc()
	return &AssertionError{Message: msg}
}

// Report sends a message of the given kind. An empty format reports nothing.
func (p *Pipeline) Report(ctx context.Context, kind models.Kind, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{kind: kind, format: format, args: args})
}

func (p *Pipeline) ReportWarning(ctx context.Context, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{kind: models.KindWarning, format: format, args: args})
}

func (p *Pipeline) ReportError(ctx context.Context, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{kind: models.KindError, format: format, args: args})
}

// ReportData reports an error carrying payload.
func (p *Pipeline) ReportData(ctx context.Context, kind models.PayloadKind, payload interface{}, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, payloadKind: kind, payload: payload,
	})
}

func (p *Pipeline) ReportText(ctx context.Context, text string, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, payloadKind: models.PayloadText, payload: text,
	})
}

func (p *Pipeline) ReportBinary(ctx context.Context, data []byte, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	p.report(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, payloadKind: models.PayloadBinary, payload: data,
	})
}

// ReportJSON attaches v as a JSON payload. Strings, byte slices and
// json.RawMessage are taken as already encoded; anything else is marshaled.
func (p *Pipeline) ReportJSON(ctx context.Context, v interface{}, format string, args ...interface{}) {
	site, eff := p.resolve(ctx)
	if !eff.Enabled {
		metrics.IncReported(string(models.KindError), "suppressed")
		return
	}
	if format == "" {
		return
	}

	var raw json.RawMessage
	switch data := v.(type) {
	case json.RawMessage:
		raw = data
	case []byte:
		raw = data
	case string:
		raw = json.RawMessage(data)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			p.logger.WarnwCtx(p.logCtx(ctx), "JSON payload encoding failed",
				"format", format,
				"error", errors.ErrFormat.WithCause(err),
			)
			metrics.IncReported(string(models.KindError), "format_error")
			return
		}
		raw = b
	}

	p.report(ctx, site, eff, call{
		kind: models.KindError, format: format, args: args, payloadKind: models.PayloadJSON, payload: raw,
	})
}

func (p *Pipeline) report(ctx context.Context, site models.CallSite, eff settings.Effective, c call) {
	if !eff.Enabled {
		metrics.IncReported(string(c.kind), "suppressed")
		return
	}
	if c.format == "" {
		return
	}
	p.emit(ctx, site, eff, c)
}

// emit formats, builds and routes one message. It reports false when the
// call was aborted by a formatting failure.
func (p *Pipeline) emit(ctx context.Context, site models.CallSite, eff settings.Effective, c call) (*models.Message, bool) {
	ctx = p.logCtx(ctx)

	text := c.fallback
	if c.format != "" {
		formatted, err := p.formatText(c.format, c.args)
		if err != nil {
			p.logger.WarnwCtx(ctx, "Message formatting failed",
				"format", c.format,
				"origin", site.MethodKey(),
				"error", err,
			)
			metrics.IncReported(string(c.kind), "format_error")
			return nil, false
		}
		text = formatted
	}

	b := models.NewMessageBuilder().
		WithKind(c.kind).
		WithText(text).
		WithTimestamp(time.Now()).
		WithScope(scope.Current(ctx)).
		WithColor(p.Color()).
		WithOrigin(site).
		WithThread(callsite.GoroutineID(), logging.GetTaskName(ctx))
	if c.payloadKind != "" {
		b.WithPayload(c.payloadKind, c.payload)
	}
	if eff.ShouldCaptureStack {
		b.WithTrace(p.capturer.Trace())
	}
	msg := b.Build()
	ctx = logging.WithMessageID(ctx, msg.ID)

	if eff.ShouldStore {
		p.store.Add(msg)
	}

	outcome := "delivered"
	if eff.ShouldNotifyListeners {
		if p.filters.Evaluate(msg) {
			outcome = "filtered"
		} else if p.listeners.Count() > 0 {
			p.listeners.Dispatch(ctx, msg)
		}
	}

	if eff.ShouldPlatformLog {
		p.platformLog(ctx, msg)
	}
	if eff.ShouldNotifyNotifier {
		p.notify(ctx, msg)
	}

	metrics.IncReported(string(c.kind), outcome)
	return msg, true
}

// formatText resolves "@key" formats through the string table and applies
// args. Malformed formats fail the call instead of leaking fmt's "%!" markers
// into the message.
func (p *Pipeline) formatText(format string, args []interface{}) (text string, err error) {
	resolved, err := p.strings.Resolve(format)
	if err != nil {
		return "", errors.ErrFormat.WithCause(err)
	}
	if err := checkFormat(resolved, args); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrFormat.WithCause(errors.RecoverPanic(r))
		}
	}()

	return fmt.Sprintf(resolved, args...), nil
}

func (p *Pipeline) platformLog(ctx context.Context, msg *models.Message) {
	err := errors.Guard(func() error {
		p.platform.Log(ctx, msg)
		return nil
	})
	if err != nil {
		p.logger.WarnwCtx(ctx, "Platform log failed", "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, msg *models.Message) {
	n := p.Notifier()
	if n == nil || !n.Enabled() {
		return
	}

	err := errors.Guard(func() error {
		return n.Notify(ctx, msg)
	})
	if err != nil {
		metrics.NotifierFailuresTotal.Inc()
		p.logger.WarnwCtx(ctx, "Notifier launch failed",
			"message_id", msg.ID,
			"error", errors.Wrap(err, errors.ErrSinkFailure),
		)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
