package listener

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"diagflow/pkg/models"
)

const (
	separatorWidth = 80
	timeLayout     = "15:04:05"
)

// TextOptions control how a message is rendered as text.
type TextOptions struct {
	UseStackInfo   bool `mapstructure:"use_stack_info"`
	TruncateFile   bool `mapstructure:"truncate_file"`
	SimplifyMethod bool `mapstructure:"simplify_method"`
	// MaxFileWidth bounds the display width of file paths, keeping the tail.
	MaxFileWidth int `mapstructure:"max_file_width"`
}

// textStyle holds the colors of one rendering. A zero style writes plain text.
type textStyle struct {
	meta      *color.Color
	label     *color.Color
	method    *color.Color
	typeName  *color.Color
	stack     *color.Color
	stackDim  *color.Color
	separator *color.Color
	kinds     map[models.Kind]*color.Color
}

func plainStyle() *textStyle {
	plain := color.New()
	plain.DisableColor()
	return &textStyle{
		meta: plain, label: plain, method: plain, typeName: plain,
		stack: plain, stackDim: plain, separator: plain,
		kinds: map[models.Kind]*color.Color{},
	}
}

func consoleStyle(enabled bool) *textStyle {
	s := &textStyle{
		meta:      color.New(color.FgHiBlack),
		label:     color.New(color.Reset),
		method:    color.New(color.FgYellow),
		typeName:  color.New(color.FgHiYellow),
		stack:     color.New(color.FgCyan),
		stackDim:  color.New(color.FgHiCyan),
		separator: color.New(color.FgHiBlack),
		kinds: map[models.Kind]*color.Color{
			models.KindError:   color.New(color.FgRed, color.Bold),
			models.KindWarning: color.New(color.FgYellow, color.Bold),
			models.KindUnknown: color.New(color.FgGreen, color.Bold),
		},
	}
	for _, c := range []*color.Color{s.meta, s.label, s.method, s.typeName, s.stack, s.stackDim, s.separator} {
		setColor(c, enabled)
	}
	for _, c := range s.kinds {
		setColor(c, enabled)
	}
	return s
}

func setColor(c *color.Color, enabled bool) {
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}

func (s *textStyle) kind(k models.Kind) *color.Color {
	if c, ok := s.kinds[k]; ok {
		return c
	}
	return s.label
}

func kindTitle(k models.Kind) string {
	switch k {
	case models.KindError:
		return "Error"
	case models.KindWarning:
		return "Warning"
	default:
		return "Unknown"
	}
}

// writeText renders one record. seq is the listener's handled-message counter
// before this message.
func writeText(w io.Writer, msg *models.Message, seq int64, opts TextOptions, style *textStyle) {
	style.meta.Fprintf(w, "%s | ", msg.Timestamp.Format(timeLayout))
	style.kind(msg.Kind).Fprint(w, kindTitle(msg.Kind))
	fmt.Fprintf(w, " | #%d", seq)
	if msg.Scope != nil {
		style.meta.Fprintf(w, " | %s (%d)", msg.Scope.Name, msg.Scope.Depth)
	}
	fmt.Fprintln(w)

	style.kind(msg.Kind).Fprintf(w, "\n%s\n\n", msg.Text)

	site := msg.Origin
	style.label.Fprint(w, "NAMESPACE: ")
	style.meta.Fprintln(w, site.Namespace)
	style.label.Fprint(w, "OBJECT:    ")
	fmt.Fprintln(w, site.Type)
	style.label.Fprint(w, "METHOD:    ")
	writeMethod(w, site, opts, style.typeName, style.method)
	style.label.Fprint(w, "LINE:      ")
	fmt.Fprintln(w, site.Line)
	style.label.Fprint(w, "FILE:      ")
	fmt.Fprintln(w, displayFile(site.File, opts))

	if opts.UseStackInfo && msg.HasTrace {
		style.stack.Fprintln(w, "\nSTACK:")
		for _, frame := range msg.Trace {
			fmt.Fprintln(w)
			style.label.Fprint(w, "METHOD: ")
			writeMethod(w, frame, opts, style.stack, style.stackDim)
			style.label.Fprint(w, "LINE:   ")
			style.stack.Fprintln(w, frame.Line)
			style.label.Fprint(w, "FILE:   ")
			style.stack.Fprintln(w, displayFile(frame.File, opts))
		}
	}

	fmt.Fprintln(w)
	style.separator.Fprintln(w, strings.Repeat("-", separatorWidth))
}

func writeMethod(w io.Writer, site models.CallSite, opts TextOptions, typeColor, methodColor *color.Color) {
	if opts.SimplifyMethod {
		methodColor.Fprintln(w, site.Method)
		return
	}
	typeColor.Fprintf(w, "%s ", site.MethodKind)
	methodColor.Fprintln(w, site.Signature)
}

func displayFile(path string, opts TextOptions) string {
	if opts.TruncateFile && path != "" {
		path = filepath.Base(path)
	}
	if opts.MaxFileWidth > 0 {
		path = truncateLeft(path, opts.MaxFileWidth)
	}
	return path
}

// truncateLeft keeps the rightmost runes of s that fit in width display
// cells, marking the cut with "...".
func truncateLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}

	runes := []rune(s)
	used := 3
	start := len(runes)
	for start > 0 {
		rw := runewidth.RuneWidth(runes[start-1])
		if used+rw > width {
			break
		}
		used += rw
		start--
	}
	return "..." + string(runes[start:])
}
