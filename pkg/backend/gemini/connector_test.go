package gemini

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

func TestInitialize_PublicAPIKeyMode_RequiresKey(t *testing.T) {
	c := New(ModePublicAPIKey)
	err := c.Initialize(backend.Params{})
	require.Error(t, err)
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestChatCompletions_PublicAPIKeyMode_UsesQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AIza-test", r.URL.Query().Get("key"))
		assert.Equal(t, "/models/gemini-1.5-pro:generateContent", r.URL.Path)
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := New(ModePublicAPIKey)
	require.NoError(t, c.Initialize(backend.Params{APIKey: "AIza-test", BaseURL: srv.URL}))

	resp, streamResp, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{
		WireBody:       map[string]interface{}{},
		EffectiveModel: "gemini-1.5-pro",
	})
	require.NoError(t, err)
	assert.Nil(t, streamResp)
	assert.NotNil(t, resp)
}

func TestChatCompletions_OAuthMode_UsesBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer oauth-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("key"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(ModeOAuth)
	require.NoError(t, c.Initialize(backend.Params{APIKey: "oauth-token", BaseURL: srv.URL}))
	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{EffectiveModel: "gemini-1.5-pro"})
	require.NoError(t, err)
}

func TestInitialize_VertexMode_RequiresProjectAndLocation(t *testing.T) {
	c := New(ModeVertex)
	err := c.Initialize(backend.Params{APIKey: "token"})
	require.Error(t, err)
	var invalid *domain.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestChatCompletions_StreamingAddsAltSSEParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		assert.Equal(t, "/models/gemini-1.5-pro:streamGenerateContent", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {}\n\n"))
	}))
	defer srv.Close()

	c := New(ModePublicAPIKey)
	require.NoError(t, c.Initialize(backend.Params{APIKey: "AIza-test", BaseURL: srv.URL}))
	_, streamResp, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{
		EffectiveModel: "gemini-1.5-pro",
		Stream:         true,
	})
	require.NoError(t, err)
	require.NotNil(t, streamResp)
	streamResp.Content.Close()
}
