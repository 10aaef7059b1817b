package openaicompat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_RequiresBaseURL(t *testing.T) {
	c := New(Config{Name: "openai"})
	err := c.Initialize(backend.Params{APIKey: "sk-test"})
	require.Error(t, err)
	var invalid *domain.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestChatCompletions_UnarySendsBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"id":"chatcmpl-1","choices":[]}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", DefaultBaseURL: srv.URL})
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-test"}))

	resp, streamResp, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{
		WireBody:       map[string]interface{}{"model": "gpt-4o"},
		EffectiveModel: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Nil(t, streamResp)
	assert.Equal(t, "chatcmpl-1", resp.Content["id"])
}

func TestChatCompletions_NonStreamErrorMapsToBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "openrouter", DefaultBaseURL: srv.URL})
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-test"}))

	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{WireBody: map[string]interface{}{}})
	require.Error(t, err)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 502, be.StatusCode)
}

func TestChatCompletions_AuthFailureMapsToAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", DefaultBaseURL: srv.URL})
	require.NoError(t, c.Initialize(backend.Params{APIKey: "bad"}))

	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{WireBody: map[string]interface{}{}})
	require.Error(t, err)
	var ae *domain.AuthenticationError
	require.ErrorAs(t, err, &ae)
}

func TestGetAvailableModelsAsync_PopulatesModelList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", DefaultBaseURL: srv.URL})
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-test"}))

	models, err := c.GetAvailableModelsAsync(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gpt-4o", "gpt-4o-mini"}, models)
	assert.ElementsMatch(t, []string{"gpt-4o", "gpt-4o-mini"}, c.GetAvailableModels())
}

func TestChatCompletions_StreamingReturnsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"delta\":\"hi\"}\n\ndata: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", DefaultBaseURL: srv.URL})
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-test"}))

	resp, streamResp, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{
		WireBody: map[string]interface{}{"model": "gpt-4o"},
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Nil(t, resp)
	require.NotNil(t, streamResp)
	defer streamResp.Content.Close()
	assert.Equal(t, "text/event-stream", streamResp.MediaType)
}
