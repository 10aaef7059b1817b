package registry

import (
	"context"
	"testing"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	name   string
	models []string
}

func (f *fakeConnector) Name() string                                 { return f.name }
func (f *fakeConnector) Initialize(backend.Params) error               { return nil }
func (f *fakeConnector) GetAvailableModels() []string                  { return f.models }
func (f *fakeConnector) GetAvailableModelsAsync(context.Context) ([]string, error) {
	return f.models, nil
}
func (f *fakeConnector) ChatCompletions(context.Context, backend.ChatCompletionsRequest) (*backend.ResponseEnvelope, *backend.StreamingResponseEnvelope, error) {
	return &backend.ResponseEnvelope{Content: map[string]interface{}{"id": f.name}}, nil, nil
}

func TestNew_InitializesEmptyMaps(t *testing.T) {
	r := New()
	assert.Empty(t, r.ListConnectors())
	assert.Empty(t, r.ListAliases())
}

func TestRegister_AndConnector(t *testing.T) {
	r := New()
	c := &fakeConnector{name: "openai"}
	r.Register("openai", c)

	got, err := r.Connector("openai")
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func TestConnector_NotFound(t *testing.T) {
	r := New()
	_, err := r.Connector("missing")
	require.Error(t, err)
	var invalid *domain.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestResolve_DirectConnectorModelFormat(t *testing.T) {
	r := New()
	r.Register("openai", &fakeConnector{name: "openai"})

	conn, model, err := r.Resolve("openai:gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
	assert.Equal(t, "openai", conn.Name())
}

func TestResolve_ViaAlias(t *testing.T) {
	r := New()
	r.Register("openai", &fakeConnector{name: "openai"})
	r.RegisterAlias("gpt4", "openai:gpt-4o")

	conn, model, err := r.Resolve("gpt4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
	assert.Equal(t, "openai", conn.Name())
}

func TestResolve_InvalidFormat(t *testing.T) {
	r := New()
	_, _, err := r.Resolve("no-colon-here")
	require.Error(t, err)
}

func TestResolve_UnknownConnector(t *testing.T) {
	r := New()
	_, _, err := r.Resolve("nonexistent:model")
	require.Error(t, err)
}

func TestListConnectors_SortedAndDeduped(t *testing.T) {
	r := New()
	r.Register("zhipu", &fakeConnector{name: "zhipu"})
	r.Register("anthropic", &fakeConnector{name: "anthropic"})
	r.Register("anthropic", &fakeConnector{name: "anthropic-v2"}) // overwrite

	assert.Equal(t, []string{"anthropic", "zhipu"}, r.ListConnectors())
	conn, _ := r.Connector("anthropic")
	assert.Equal(t, "anthropic-v2", conn.Name())
}

func TestListAliases_ReturnsCopy(t *testing.T) {
	r := New()
	r.RegisterAlias("gpt4", "openai:gpt-4o")

	aliases := r.ListAliases()
	aliases["injected"] = "should-not-persist"

	assert.NotContains(t, r.ListAliases(), "injected")
}

func TestCapabilities_RoundTrip(t *testing.T) {
	r := New()
	caps := domain.Capabilities{ContextWindow: 128000, SupportsTools: true}
	r.RegisterCapabilities("openai:gpt-4o", caps)

	got, ok := r.Capabilities("openai:gpt-4o")
	require.True(t, ok)
	assert.Equal(t, caps, got)

	_, ok = r.Capabilities("openai:unknown")
	assert.False(t, ok)
}

func TestAggregateModels_PrefixesConnectorName(t *testing.T) {
	r := New()
	r.Register("openai", &fakeConnector{name: "openai", models: []string{"gpt-4o", "gpt-4o-mini"}})
	r.Register("anthropic", &fakeConnector{name: "anthropic", models: []string{"claude-3-5-sonnet"}})

	got := r.AggregateModels()
	assert.Equal(t, []string{
		"anthropic:claude-3-5-sonnet",
		"openai:gpt-4o",
		"openai:gpt-4o-mini",
	}, got)
}

func TestParseModelString_Valid(t *testing.T) {
	conn, model, err := parseModelString("openai:gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "openai", conn)
	assert.Equal(t, "gpt-4", model)
}

func TestParseModelString_Invalid(t *testing.T) {
	_, _, err := parseModelString("no-colon")
	require.Error(t, err)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func() {
			r.Register("concurrent", &fakeConnector{name: "concurrent"})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = r.Connector("concurrent")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
