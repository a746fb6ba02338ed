package models

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindUnknown Kind = "unknown"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindError:
		return KindError, nil
	case KindWarning:
		return KindWarning, nil
	case KindUnknown, "":
		return KindUnknown, nil
	}
	return "", fmt.Errorf("unknown message kind %q", s)
}

type PayloadKind string

const (
	PayloadNone       PayloadKind = "none"
	PayloadUnknown    PayloadKind = "unknown"
	PayloadText       PayloadKind = "text"
	PayloadBinary     PayloadKind = "binary"
	PayloadStream     PayloadKind = "stream"
	PayloadHTML       PayloadKind = "html"
	PayloadHTMLStream PayloadKind = "html_stream"
	PayloadXML        PayloadKind = "xml"
	PayloadXMLStream  PayloadKind = "xml_stream"
	PayloadDataSet    PayloadKind = "dataset"
	PayloadDataTable  PayloadKind = "datatable"
	PayloadJSON       PayloadKind = "json"
)

// Message is one diagnostic event. It must not be modified after the pipeline
// hands it to the store or to listeners.
type Message struct {
	ID          string      `json:"id" msgpack:"id"`
	Kind        Kind        `json:"kind" msgpack:"kind"`
	Scope       *Scope      `json:"scope,omitempty" msgpack:"scope,omitempty"`
	Color       Color       `json:"color" msgpack:"color"`
	Text        string      `json:"text" msgpack:"text"`
	Timestamp   time.Time   `json:"timestamp" msgpack:"timestamp"`
	Origin      CallSite    `json:"origin" msgpack:"origin"`
	HasTrace    bool        `json:"has_trace" msgpack:"has_trace"`
	Trace       []CallSite  `json:"trace,omitempty" msgpack:"trace,omitempty"`
	ThreadID    int64       `json:"thread_id" msgpack:"thread_id"`
	ThreadName  string      `json:"thread_name,omitempty" msgpack:"thread_name,omitempty"`
	PayloadKind PayloadKind `json:"payload_kind" msgpack:"payload_kind"`
	Payload     interface{} `json:"-" msgpack:"-"`
}

// Scope is a named grouping label. Depth is 1 for the outermost scope.
type Scope struct {
	Name  string `json:"name" msgpack:"name"`
	Depth int    `json:"depth" msgpack:"depth"`
}

type MethodKind string

const (
	MethodPublic   MethodKind = "public"
	MethodPrivate  MethodKind = "private"
	MethodStatic   MethodKind = "static"
	MethodVirtual  MethodKind = "virtual"
	MethodAbstract MethodKind = "abstract"
)

// CallSite identifies one frame of the reporting goroutine's stack.
type CallSite struct {
	File       string     `json:"file" msgpack:"file"`
	Namespace  string     `json:"namespace" msgpack:"namespace"`
	Type       string     `json:"type,omitempty" msgpack:"type,omitempty"`
	Method     string     `json:"method" msgpack:"method"`
	Signature  string     `json:"signature" msgpack:"signature"`
	Line       int        `json:"line" msgpack:"line"`
	MethodKind MethodKind `json:"method_kind" msgpack:"method_kind"`
}

// TypeKey is the declaring type qualified by its package path, or the bare
// package path for plain functions.
func (c CallSite) TypeKey() string {
	if c.Type == "" {
		return c.Namespace
	}
	return c.Namespace + "." + c.Type
}

func (c CallSite) MethodKey() string {
	return c.TypeKey() + "." + c.Method
}

func (c CallSite) String() string {
	return fmt.Sprintf("%s (%s:%d)", c.MethodKey(), c.File, c.Line)
}

func (m *Message) IsError() bool {
	return m.Kind == KindError
}

func (m *Message) IsWarning() bool {
	return m.Kind == KindWarning
}

// ScopeName returns the enclosing scope name or an empty string.
func (m *Message) ScopeName() string {
	if m.Scope == nil {
		return ""
	}
	return m.Scope.Name
}
