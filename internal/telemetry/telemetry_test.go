package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_DisabledReturnsNoopTracer(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Tracer())
}

func TestNewProvider_EnabledWithoutEndpointErrors(t *testing.T) {
	settings := DefaultSettings()
	settings.Enabled = true
	_, err := NewProvider(context.Background(), settings)
	require.Error(t, err)
}

func TestRecordSpan_PropagatesResultOnSuccess(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultSettings())
	require.NoError(t, err)

	result, err := RecordSpan(context.Background(), p.Tracer(), SpanOptions{Name: "test"}, func(ctx context.Context, span trace.Span) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRecordSpan_PropagatesError(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultSettings())
	require.NoError(t, err)

	wantErr := errors.New("boom")
	_, err = RecordSpan(context.Background(), p.Tracer(), SpanOptions{Name: "test"}, func(ctx context.Context, span trace.Span) (int, error) {
		return 0, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
