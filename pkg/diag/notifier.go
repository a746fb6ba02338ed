package diag

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/fatih/color"

	"diagflow/pkg/logger"
	"diagflow/pkg/models"
)

// Notifier is an interactive sink that is handed each message synchronously
// when notification is on for the call site.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, msg *models.Message) error
}

// PlatformLogger receives the text of each message when platform logging is
// on for the call site.
type PlatformLogger interface {
	Log(ctx context.Context, msg *models.Message)
}

type loggerPlatform struct {
	log logger.Logger
}

// NewLoggerPlatform forwards message texts to log at debug level.
func NewLoggerPlatform(log logger.Logger) PlatformLogger {
	return &loggerPlatform{log: log}
}

func (l *loggerPlatform) Log(ctx context.Context, msg *models.Message) {
	l.log.DebugwCtx(ctx, msg.Text,
		"diag_kind", msg.Kind,
		"origin", msg.Origin.MethodKey(),
	)
}

// TerminalNotifier prints a highlighted one-line alert and rings the
// terminal bell.
type TerminalNotifier struct {
	out      io.Writer
	disabled atomic.Bool
	alert    *color.Color
}

func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	if out == nil {
		out = os.Stderr
	}
	return &TerminalNotifier{
		out:   out,
		alert: color.New(color.FgHiWhite, color.BgRed, color.Bold),
	}
}

func (n *TerminalNotifier) Enabled() bool     { return !n.disabled.Load() }
func (n *TerminalNotifier) SetEnabled(v bool) { n.disabled.Store(!v) }

func (n *TerminalNotifier) Notify(ctx context.Context, msg *models.Message) error {
	_, err := fmt.Fprintf(n.out, "\a%s %s (%s)\n",
		n.alert.Sprintf(" %s ", msg.Kind),
		msg.Text,
		msg.Origin,
	)
	return err
}
