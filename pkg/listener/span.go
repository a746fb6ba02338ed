package listener

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"diagflow/pkg/models"
)

// SpanListener records each message as an event on the span active in the
// reporting context. Messages reported outside a recording span are skipped.
type SpanListener struct {
	Base
	markErrors bool
}

// NewSpanListener builds the listener. With markErrors set, error messages
// also set the span status to Error.
func NewSpanListener(id int, markErrors bool) *SpanListener {
	return &SpanListener{Base: Base{id: id, name: "span"}, markErrors: markErrors}
}

func (l *SpanListener) Open(ctx context.Context) error {
	l.setOpen(true)
	return nil
}

func (l *SpanListener) Close() error {
	l.setOpen(false)
	return nil
}

func (l *SpanListener) Dispatch(ctx context.Context, msg *models.Message) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	l.next()

	attrs := []attribute.KeyValue{
		attribute.String("diag.message_id", msg.ID),
		attribute.String("diag.kind", string(msg.Kind)),
		attribute.String("diag.text", msg.Text),
		attribute.String("diag.origin", msg.Origin.MethodKey()),
		attribute.String("code.filepath", msg.Origin.File),
		attribute.Int("code.lineno", msg.Origin.Line),
		attribute.Int64("thread.id", msg.ThreadID),
	}
	if msg.Scope != nil {
		attrs = append(attrs, attribute.String("diag.scope", msg.Scope.Name))
	}

	span.AddEvent("diag."+string(msg.Kind), trace.WithTimestamp(msg.Timestamp), trace.WithAttributes(attrs...))
	if l.markErrors && msg.IsError() {
		span.SetStatus(codes.Error, msg.Text)
	}
	return nil
}
