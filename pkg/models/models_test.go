package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"error", KindError, false},
		{" Warning ", KindWarning, false},
		{"", KindUnknown, false},
		{"unknown", KindUnknown, false},
		{"fatal", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallSiteKeys(t *testing.T) {
	method := CallSite{Namespace: "example.com/app/loader", Type: "Loader", Method: "Load"}
	assert.Equal(t, "example.com/app/loader.Loader", method.TypeKey())
	assert.Equal(t, "example.com/app/loader.Loader.Load", method.MethodKey())

	fn := CallSite{Namespace: "example.com/app/loader", Method: "parse"}
	assert.Equal(t, "example.com/app/loader", fn.TypeKey())
	assert.Equal(t, "example.com/app/loader.parse", fn.MethodKey())
}

func TestMessageBuilder(t *testing.T) {
	scope := &Scope{Name: "load", Depth: 1}
	msg := NewMessageBuilder().
		WithKind(KindWarning).
		WithText("disk almost full").
		WithScope(scope).
		WithOrigin(CallSite{Namespace: "app", Method: "main"}).
		WithThread(7, "main").
		WithPayload(PayloadText, "details").
		Build()

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, KindWarning, msg.Kind)
	assert.Equal(t, "load", msg.ScopeName())
	assert.False(t, msg.HasTrace)
	assert.True(t, msg.IsWarning())

	scope.Name = "changed"
	assert.Equal(t, "load", msg.ScopeName(), "builder keeps its own copy of the scope")

	require.NoError(t, ValidateMessage(msg))
}

func TestValidateMessage(t *testing.T) {
	valid := func() *Message {
		return &Message{
			ID:        "m1",
			Kind:      KindError,
			Timestamp: time.Now(),
			Origin:    CallSite{Method: "Run"},
		}
	}

	tests := []struct {
		name   string
		mutate func(m *Message)
		field  string
	}{
		{"missing id", func(m *Message) { m.ID = "" }, "id"},
		{"zero timestamp", func(m *Message) { m.Timestamp = time.Time{} }, "timestamp"},
		{"bad kind", func(m *Message) { m.Kind = "fatal" }, "kind"},
		{"no origin", func(m *Message) { m.Origin = CallSite{} }, "origin"},
		{"trace without flag", func(m *Message) { m.Trace = []CallSite{{Method: "x"}} }, "trace"},
		{"bad depth", func(m *Message) { m.Scope = &Scope{Name: "s"} }, "scope.depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := ValidateMessage(m)
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.Error(t, ValidateMessage(nil))
}

func TestColorByNumber(t *testing.T) {
	assert.Equal(t, ColorBlack, ColorByNumber(0))
	assert.Equal(t, ColorRed, ColorByNumber(10))
	assert.Equal(t, ColorBlack, ColorByNumber(PaletteSize()))
	assert.Equal(t, ColorDarkOrange, ColorByNumber(-1))
	assert.Equal(t, "#ff0000", ColorRed.Hex())
	assert.Contains(t, palette, RandomColor())
}
