package qwenoauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCreds(t *testing.T, path string, creds Credentials) {
	t.Helper()
	require.NoError(t, SaveCredentials(path, creds))
}

func TestInitialize_MissingFileMarksNonFunctional(t *testing.T) {
	c := New(Options{CredentialsPath: filepath.Join(t.TempDir(), "missing.json")})
	require.NoError(t, c.Initialize(backend.Params{}))
	assert.False(t, c.IsFunctional())
}

func TestInitialize_InvalidCredentialsMarksNonFunctional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth_creds.json")
	writeCreds(t, path, Credentials{AccessToken: "a"})

	c := New(Options{CredentialsPath: path})
	require.NoError(t, c.Initialize(backend.Params{}))
	assert.False(t, c.IsFunctional())
}

func TestChatCompletions_NonFunctionalReturnsBackendError(t *testing.T) {
	c := New(Options{CredentialsPath: filepath.Join(t.TempDir(), "missing.json")})
	require.NoError(t, c.Initialize(backend.Params{}))

	_, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{})
	require.Error(t, err)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "No valid OAuth credentials")
}

func TestChatCompletions_ValidCredentialsDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer valid-access", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"chatcmpl-1"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "oauth_creds.json")
	writeCreds(t, path, Credentials{
		AccessToken:  "valid-access",
		RefreshToken: "r",
		ExpiryMs:     time.Now().Add(time.Hour).UnixMilli(),
		ResourceURL:  srv.URL,
	})

	c := New(Options{CredentialsPath: path})
	require.NoError(t, c.Initialize(backend.Params{}))
	assert.True(t, c.IsFunctional())

	resp, _, err := c.ChatCompletions(context.Background(), backend.ChatCompletionsRequest{WireBody: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-1", resp.Content["id"])
}
