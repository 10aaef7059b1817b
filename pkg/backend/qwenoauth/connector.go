package qwenoauth

import (
	"context"
	"fmt"
	"time"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/backend/openaicompat"
	"github.com/llmgateway/proxycore/pkg/domain"
)

const connectorName = "qwen-oauth"

// DefaultBaseURL is used when a credential file carries no resource_url
// override.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Connector wraps an openaicompat.Connector with the Qwen OAuth credential
// lifecycle (spec §4.6): startup validation, expiry-gated refresh before
// every call, and an optional file watcher that picks up credentials
// refreshed by another process sharing the same file.
type Connector struct {
	credentialsPath string
	clientID        string
	watchEnabled    bool

	inner      *openaicompat.Connector
	refresher  *Refresher
	watcher    *Watcher
	functional bool
	initErr    error
}

// Options configures a Connector before Initialize is called.
type Options struct {
	CredentialsPath string
	ClientID        string
	WatchFile       bool
}

// New returns an uninitialized connector. Call Initialize to load and
// validate the credential file.
func New(opts Options) *Connector {
	return &Connector{
		credentialsPath: opts.CredentialsPath,
		clientID:        opts.ClientID,
		watchEnabled:    opts.WatchFile,
		inner: openaicompat.New(openaicompat.Config{
			Name:           connectorName,
			DefaultBaseURL: DefaultBaseURL,
		}),
	}
}

func (c *Connector) Name() string { return connectorName }

// Initialize loads the credential file, validates it, and — if valid —
// initializes the wrapped OpenAI-compatible dispatcher with the current
// access token. An invalid credential file does not fail Initialize: per
// spec §4.6 the connector is registered but marked non-functional, and
// every call returns BackendError("No valid OAuth credentials") until a
// reload or refresh produces a usable token.
func (c *Connector) Initialize(params backend.Params) error {
	creds, err := LoadCredentials(c.credentialsPath)
	if err != nil {
		c.initErr = fmt.Errorf("qwenoauth: load credentials: %w", err)
		c.functional = false
		return nil
	}
	if errs := Validate(creds, time.Now()); len(errs) > 0 {
		c.initErr = fmt.Errorf("qwenoauth: invalid credentials: %v", errs)
		c.functional = false
		return nil
	}

	c.refresher = NewRefresher(c.credentialsPath, c.clientID, creds)
	if c.watchEnabled {
		w, err := NewWatcher(c.credentialsPath, c.refresher)
		if err == nil {
			c.watcher = w
		}
	}

	return c.initializeInnerFromCreds(params, creds)
}

func (c *Connector) initializeInnerFromCreds(params backend.Params, creds Credentials) error {
	baseURL := params.BaseURL
	if baseURL == "" && creds.ResourceURL != "" {
		baseURL = creds.ResourceURL
	}
	innerParams := backend.Params{APIKey: creds.AccessToken, BaseURL: baseURL, Extra: params.Extra}
	if err := c.inner.Initialize(innerParams); err != nil {
		c.initErr = err
		c.functional = false
		return nil
	}
	c.functional = true
	c.initErr = nil
	return nil
}

// IsFunctional reports whether the connector currently holds a valid
// credential set (spec §4.6 "is_functional").
func (c *Connector) IsFunctional() bool { return c.functional }

func (c *Connector) GetAvailableModels() []string {
	if !c.functional {
		return nil
	}
	return c.inner.GetAvailableModels()
}

func (c *Connector) GetAvailableModelsAsync(ctx context.Context) ([]string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	return c.inner.GetAvailableModelsAsync(ctx)
}

func (c *Connector) ChatCompletions(ctx context.Context, req backend.ChatCompletionsRequest) (*backend.ResponseEnvelope, *backend.StreamingResponseEnvelope, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, nil, err
	}
	return c.inner.ChatCompletions(ctx, req)
}

// ensureFresh refreshes credentials if needed and re-initializes the
// wrapped connector with the current access token. Runs on every call
// rather than only on the 30s-before-expiry boundary, since Refresher's
// NeedsRefresh check is itself the gate — most calls are a mutex-guarded
// read plus a time comparison.
func (c *Connector) ensureFresh(ctx context.Context) error {
	if c.refresher == nil {
		return &domain.BackendError{Backend: connectorName, Message: "No valid OAuth credentials", Cause: c.initErr}
	}

	creds, err := c.refresher.EnsureFresh(ctx)
	if err != nil {
		c.functional = false
		return &domain.BackendError{Backend: connectorName, Message: "No valid OAuth credentials", Cause: err}
	}

	if !c.functional {
		return c.initializeInnerFromCreds(backend.Params{}, creds)
	}
	return nil
}

// Close releases the file watcher, if one was started.
func (c *Connector) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
