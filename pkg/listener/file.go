package listener

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"diagflow/pkg/errors"
	"diagflow/pkg/models"
)

const fileRule = "**************************************************"

type FileConfig struct {
	TextOptions `mapstructure:",squash"`
	Path        string `mapstructure:"path"`
	// Append keeps existing content instead of truncating on open.
	Append bool `mapstructure:"append"`
}

// FileListener writes plain text records framed by an open header and a
// close footer.
type FileListener struct {
	Base
	mu    sync.Mutex
	cfg   FileConfig
	style *textStyle
	file  *os.File
	w     *bufio.Writer
}

func NewFileListener(id int, cfg FileConfig) *FileListener {
	return &FileListener{Base: Base{id: id, name: "file"}, cfg: cfg, style: plainStyle()}
}

func (l *FileListener) Path() string {
	return l.cfg.Path
}

func (l *FileListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Path == "" {
		return errors.ErrInvalidArgument.WithMessage("file listener path is required")
	}
	if l.file != nil {
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if l.cfg.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(l.cfg.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", l.cfg.Path, err)
	}

	l.file = f
	l.w = bufio.NewWriter(f)
	fmt.Fprintf(l.w, "Text file listener opened at %s\n", time.Now().Format(time.DateTime))
	fmt.Fprintf(l.w, "%s\n\n\n", fileRule)
	if err := l.w.Flush(); err != nil {
		_ = f.Close()
		l.file, l.w = nil, nil
		return fmt.Errorf("failed to write header: %w", err)
	}

	l.setOpen(true)
	return nil
}

func (l *FileListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	fmt.Fprintf(l.w, "\n\n%s\n", fileRule)
	fmt.Fprintf(l.w, "Text file listener closed at %s\n", time.Now().Format(time.DateTime))
	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	l.file, l.w = nil, nil
	l.setOpen(false)

	if flushErr != nil {
		return fmt.Errorf("failed to write footer: %w", flushErr)
	}
	return closeErr
}

func (l *FileListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.ErrUnavailable.WithMessage("file listener %s is not open", l.cfg.Path)
	}

	var sb strings.Builder
	writeText(&sb, msg, l.next(), l.cfg.TextOptions, l.style)
	if _, err := l.w.WriteString(sb.String()); err != nil {
		return err
	}
	return l.w.Flush()
}
