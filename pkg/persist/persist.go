// Package persist saves and loads ordered message dumps.
//
// Three encodings are supported, picked from the file extension: ".json",
// ".json.gz" and ".msgpack". Every message field round-trips, including the
// captured trace.
package persist

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"diagflow/pkg/errors"
	"diagflow/pkg/models"
)

const documentVersion = 1

type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONGzip Format = "json.gz"
	FormatMsgpack  Format = "msgpack"
)

// FormatFromPath picks the encoding for path. Unknown extensions use JSON.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json.gz"), strings.HasSuffix(lower, ".gz"):
		return FormatJSONGzip
	case strings.HasSuffix(lower, ".msgpack"), strings.HasSuffix(lower, ".mp"):
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

type Document struct {
	Version  int       `json:"version" msgpack:"version"`
	SavedAt  time.Time `json:"saved_at" msgpack:"saved_at"`
	Messages []Record  `json:"messages" msgpack:"messages"`
}

func Encode(w io.Writer, format Format, msgs []*models.Message) error {
	doc := Document{
		Version:  documentVersion,
		SavedAt:  time.Now().UTC(),
		Messages: make([]Record, 0, len(msgs)),
	}
	for _, m := range msgs {
		if m != nil {
			doc.Messages = append(doc.Messages, NewRecord(m))
		}
	}

	switch format {
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(&doc)
	case FormatJSONGzip:
		gz := gzip.NewWriter(w)
		if err := encodeJSON(gz, &doc); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	default:
		return encodeJSON(w, &doc)
	}
}

func encodeJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func Decode(r io.Reader, format Format) ([]*models.Message, error) {
	var doc Document

	switch format {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode msgpack dump: %w", err)
		}
	case FormatJSONGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip dump: %w", err)
		}
		defer gz.Close()
		if err := json.NewDecoder(gz).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode compressed dump: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode dump: %w", err)
		}
	}

	if doc.Version > documentVersion {
		return nil, errors.ErrInvalidArgument.WithMessage("unsupported dump version %d", doc.Version)
	}

	msgs := make([]*models.Message, 0, len(doc.Messages))
	for i, rec := range doc.Messages {
		msg := rec.Message()
		if err := models.ValidateMessage(msg); err != nil {
			return nil, errors.ErrInvalidArgument.WithCause(err).WithDetail("index", i)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SaveFile writes msgs to path through a temporary file so readers never see
// a partial dump.
func SaveFile(path string, msgs []*models.Message) error {
	return SaveFileFormat(path, FormatFromPath(path), msgs)
}

const dumpFileMode os.FileMode = 0o644

func SaveFileFormat(path string, format Format, msgs []*models.Message) error {
	if path == "" {
		return errors.ErrInvalidArgument.WithMessage("dump path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".diagdump-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := Encode(tmp, format, msgs); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode dump: %w", err)
	}
	// CreateTemp opens with 0600
	if err := tmp.Chmod(dumpFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set dump permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move dump into place: %w", err)
	}
	return nil
}

// LoadFile picks the format from the extension, except that gzip content is
// always read as compressed JSON.
func LoadFile(path string) ([]*models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	format := FormatFromPath(path)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		format = FormatJSONGzip
	}
	return Decode(br, format)
}

func LoadFileFormat(path string, format Format) ([]*models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f, format)
}
