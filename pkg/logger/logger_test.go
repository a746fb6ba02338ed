package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"diagflow/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).(*SugaredLogger)
	log.SetPipelineName("default")

	ctx := logging.WithTaskName(context.Background(), "worker-1")
	log.WarnwCtx(ctx, "listener open failed", "listener_id", 4)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "worker-1", fields["task_name"])
	assert.Equal(t, "default", fields["pipeline"])
	assert.Equal(t, int64(4), fields["listener_id"])
}

func TestZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := FromZap(zap.New(core))

	Zap(log).Info("forwarded")
	assert.Equal(t, 1, logs.Len())
	assert.NotNil(t, Zap(nil))
}
