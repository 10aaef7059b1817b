package anthropic

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

func TestInitialize_RequiresAPIKey(t *testing.T) {
	c := New()
	err := c.Initialize(backend.Params{})
	require.Error(t, err)
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestChatCompletions_SendsAPIKeyAndVersionHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "/messages", r.URL.Path)
		w.Write([]byte(`{"id":"msg_1","content":[]}`))
	}))
	defer srv.Close()

	c := New()
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-ant-test", BaseURL: srv.URL}))

	resp, streamResp, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{
		WireBody: map[string]interface{}{"model": "claude-3-5-sonnet"},
	})
	require.NoError(t, err)
	assert.Nil(t, streamResp)
	assert.Equal(t, "msg_1", resp.Content["id"])
}

func TestInitialize_AllowsAPIVersionOverride(t *testing.T) {
	var seenVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenVersion = r.Header.Get("anthropic-version")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New()
	require.NoError(t, c.Initialize(backend.Params{
		APIKey:  "sk-ant-test",
		BaseURL: srv.URL,
		Extra:   map[string]interface{}{"api_version": "2024-10-01"},
	}))
	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{WireBody: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, "2024-10-01", seenVersion)
}

func TestChatCompletions_ErrorMapsToBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New()
	require.NoError(t, c.Initialize(backend.Params{APIKey: "sk-ant-test", BaseURL: srv.URL}))
	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{WireBody: map[string]interface{}{}})
	require.Error(t, err)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 429, be.StatusCode)
}
