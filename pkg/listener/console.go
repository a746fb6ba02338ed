package listener

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"diagflow/pkg/models"
)

type ConsoleConfig struct {
	TextOptions `mapstructure:",squash"`
	// Color is "auto", "always" or "never".
	Color string `mapstructure:"color"`
}

// ConsoleListener writes colored, human readable records to a terminal.
type ConsoleListener struct {
	Base
	mu    sync.Mutex
	out   io.Writer
	opts  TextOptions
	style *textStyle
	width int
}

// NewConsoleListener writes to stdout.
func NewConsoleListener(id int, cfg ConsoleConfig) *ConsoleListener {
	return NewConsoleListenerTo(id, os.Stdout, cfg)
}

func NewConsoleListenerTo(id int, out io.Writer, cfg ConsoleConfig) *ConsoleListener {
	return &ConsoleListener{
		Base:  Base{id: id, name: "console"},
		out:   out,
		opts:  cfg.TextOptions,
		style: consoleStyle(colorEnabled(out, cfg.Color)),
		width: terminalWidth(out),
	}
}

func colorEnabled(out io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return separatorWidth
}

func (l *ConsoleListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "Console listener opened at %s\n", time.Now().Format(time.DateTime))
	l.setOpen(true)
	return nil
}

func (l *ConsoleListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.IsOpen() {
		return nil
	}
	fmt.Fprint(l.out, "\n\n")
	l.style.kind(models.KindError).Fprintln(l.out, strings.Repeat("=", l.width))
	fmt.Fprintf(l.out, "Console listener closed at %s\n", time.Now().Format(time.DateTime))
	l.setOpen(false)
	return nil
}

func (l *ConsoleListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	writeText(l.out, msg, l.next(), l.opts, l.style)
	return nil
}
