package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	assert.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitOTel_MissingEndpoint(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	_, err := InitOTel(context.Background(), OTelConfig{Enabled: true, ServiceName: "sso"}, logger)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

// OTLP exporters do not connect at creation time, so an unreachable collector still initializes
func TestInitOTel_UnreachableCollector(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:1",
		ServiceName:    "sso-test",
		ServiceVersion: "0.0.1",
		Insecure:       true,
		SampleRatio:    0.5,
		Broker:         "workos",
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = providers.Shutdown(ctx)
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("no active span", func(t *testing.T) {
		assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	})

	t.Run("recording span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())

		ctx, span := Tracer(tp).Start(context.Background(), "test")
		defer span.End()

		buf.Reset()
		LoggerWithTrace(ctx, logger).Info("traced")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})

	t.Run("non recording span", func(t *testing.T) {
		ctx := trace.ContextWithSpan(context.Background(), trace.SpanFromContext(context.Background()))
		assert.Same(t, logger, LoggerWithTrace(ctx, logger))
	})
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sampler(tt.ratio).Description())
	}
}
