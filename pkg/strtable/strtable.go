// Package strtable maps keys to format strings so reports can be written as
// "@key" and localized or reworded without touching call sites.
package strtable

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"diagflow/pkg/errors"
)

// Sentinel marks a format string as a table key.
const Sentinel = "@"

// Resolver looks a key up in some other source of strings.
type Resolver interface {
	Lookup(key string) (string, bool)
}

type file struct {
	Strings map[string]string `toml:"strings"`
}

// Table is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	entries  map[string]string
	fallback Resolver
}

func New() *Table {
	return &Table{entries: make(map[string]string)}
}

// SetFallback installs a resolver consulted for keys missing from the table.
func (t *Table) SetFallback(r Resolver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = r
}

func normalize(key string) string {
	return strings.TrimPrefix(key, Sentinel)
}

// Add registers value under key. A leading "@" on key is ignored. Existing
// keys are not replaced.
func (t *Table) Add(key, value string) error {
	key = normalize(key)
	if key == "" {
		return errors.ErrInvalidArgument.WithMessage("string key is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; ok {
		return errors.ErrConflict.WithMessage("string %q already exists", key).WithDetail("key", key)
	}
	t.entries[key] = value
	return nil
}

// Set registers or replaces value under key.
func (t *Table) Set(key, value string) error {
	key = normalize(key)
	if key == "" {
		return errors.ErrInvalidArgument.WithMessage("string key is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = value
	return nil
}

func (t *Table) Get(key string) (string, bool) {
	return t.Lookup(key)
}

// Lookup checks the table, then the fallback.
func (t *Table) Lookup(key string) (string, bool) {
	key = normalize(key)
	if key == "" {
		return "", false
	}

	t.mu.RLock()
	value, ok := t.entries[key]
	fallback := t.fallback
	t.mu.RUnlock()

	if ok {
		return value, true
	}
	if fallback != nil {
		return fallback.Lookup(key)
	}
	return "", false
}

func (t *Table) Remove(key string) bool {
	key = normalize(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]string)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Keys returns the table's own keys in sorted order.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve returns format unchanged unless it starts with "@", in which case
// the rest is looked up. A missing key is a not found error.
func (t *Table) Resolve(format string) (string, error) {
	if !strings.HasPrefix(format, Sentinel) {
		return format, nil
	}

	key := normalize(format)
	value, ok := t.Lookup(key)
	if !ok {
		return "", errors.ErrNotFound.WithMessage("string %q not found", key).WithDetail("key", key)
	}
	return value, nil
}

// Load merges the [strings] table of a TOML document. Keys already present
// are replaced.
func (t *Table) Load(r io.Reader) error {
	var f file
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range f.Strings {
		if k = normalize(k); k != "" {
			t.entries[k] = v
		}
	}
	return nil
}

func (t *Table) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := t.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (t *Table) Save(w io.Writer) error {
	t.mu.RLock()
	f := file{Strings: make(map[string]string, len(t.entries))}
	for k, v := range t.entries {
		f.Strings[k] = v
	}
	t.mu.RUnlock()

	return toml.NewEncoder(w).Encode(f)
}

func (t *Table) SaveFile(path string) error {
	if path == "" {
		return errors.ErrInvalidArgument.WithMessage("path is required")
	}

	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		return fmt.Errorf("%s: failed to encode TOML: %w", path, err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
