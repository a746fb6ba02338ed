package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagflow/pkg/models"
)

func testMessage() *models.Message {
	return &models.Message{
		ID:        "m1",
		Kind:      models.KindWarning,
		Text:      "cache miss rate above threshold",
		Scope:     &models.Scope{Name: "warmup", Depth: 2},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ThreadID:  12,
		Origin: models.CallSite{
			File:      "/src/cache/cache.go",
			Namespace: "example.com/app/cache",
			Type:      "Cache",
			Method:    "Get",
			Line:      88,
		},
		PayloadKind: models.PayloadNone,
	}
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid simple expression",
			expr:      `kind == "error"`,
			wantError: false,
		},
		{
			name:      "valid origin lookup",
			expr:      `origin.line > 10`,
			wantError: false,
		},
		{
			name:      "invalid expression",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `undefinedVar == "test"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilterExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, eval.ValidateFilterExpression(`depth >= 2`))
	assert.Error(t, eval.ValidateFilterExpression(`text`))
}

func TestEvaluateFilter(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"kind match", `kind == "warning"`, true},
		{"kind mismatch", `kind == "error"`, false},
		{"text contains", `text.contains("cache miss")`, true},
		{"scope and depth", `scope == "warmup" && depth == 2`, true},
		{"origin namespace prefix", `origin.namespace.startsWith("example.com/app")`, true},
		{"origin line", `origin.line == 88`, true},
		{"thread", `thread_id == 12`, true},
		{"timestamp", `timestamp > timestamp("2026-01-01T00:00:00Z")`, true},
	}

	msg := testMessage()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateFilter(context.Background(), tt.expr, msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompiledProgramReuse(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	program, err := eval.Compile(`kind == "error"`)
	require.NoError(t, err)
	assert.Equal(t, `kind == "error"`, program.Expression())

	msg := testMessage()
	got, err := program.Eval(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, got)

	msg.Kind = models.KindError
	got, err = program.Eval(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = eval.Compile(`depth + 1`)
	assert.Error(t, err)
}
