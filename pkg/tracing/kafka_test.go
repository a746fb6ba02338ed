package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "report")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "kind", Value: []byte("error")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "traceparent", headers[1].Key)

	assert.Contains(t, string(headers[1].Value), span.SpanContext().TraceID().String())

	carrier := &kafkaHeaderCarrier{headers: headers}
	assert.Equal(t, []string{"kind", "traceparent"}, carrier.Keys())
	remote := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(remote).TraceID())
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(Config{})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		cfg  SamplerConfig
		want string
	}{
		{SamplerConfig{Type: "always_off"}, "AlwaysOffSampler"},
		{SamplerConfig{Type: "traceidratio", Param: 0.5}, "TraceIDRatioBased{0.5}"},
		{SamplerConfig{Type: "parentbased_traceidratio", Param: 0.5}, "ParentBased{root:TraceIDRatioBased{0.5}"},
		{SamplerConfig{}, "ParentBased{root:AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			assert.Contains(t, createSampler(tt.cfg).Description(), tt.want)
		})
	}
}
