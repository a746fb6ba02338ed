package listener

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"diagflow/pkg/logging"
	"diagflow/pkg/models"
)

// ZapListener forwards messages into a zap logger as structured entries.
// Errors log at error level, warnings at warn and everything else at info.
type ZapListener struct {
	Base
	log *zap.Logger
}

func NewZapListener(id int, log *zap.Logger) *ZapListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapListener{Base: Base{id: id, name: "zap"}, log: log}
}

func (l *ZapListener) Open(ctx context.Context) error {
	l.setOpen(true)
	return nil
}

func (l *ZapListener) Close() error {
	l.setOpen(false)
	// stderr and stdout sinks refuse Sync on some platforms
	_ = l.log.Sync()
	return nil
}

func (l *ZapListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.next()

	fields := []zap.Field{
		zap.String("message_id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.Time("reported_at", msg.Timestamp),
		zap.String("origin", msg.Origin.MethodKey()),
		zap.String("file", msg.Origin.File),
		zap.Int("line", msg.Origin.Line),
		zap.Int64("thread_id", msg.ThreadID),
	}
	if msg.Scope != nil {
		fields = append(fields, zap.String("scope", msg.Scope.Name), zap.Int("scope_depth", msg.Scope.Depth))
	}
	if msg.ThreadName != "" {
		fields = append(fields, zap.String("thread_name", msg.ThreadName))
	}
	if msg.PayloadKind != "" && msg.PayloadKind != models.PayloadNone {
		fields = append(fields, zap.String("payload_kind", string(msg.PayloadKind)))
	}
	if name := logging.GetPipelineName(ctx); name != "" {
		fields = append(fields, zap.String("pipeline", name))
	}
	if msg.HasTrace {
		frames := make([]string, len(msg.Trace))
		for i, f := range msg.Trace {
			frames[i] = f.String()
		}
		fields = append(fields, zap.Strings("trace", frames))
	}

	if ce := l.log.Check(levelFor(msg.Kind), msg.Text); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func levelFor(kind models.Kind) zapcore.Level {
	switch kind {
	case models.KindError:
		return zapcore.ErrorLevel
	case models.KindWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
