package qwenoauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// TokenEndpoint is Qwen's OAuth token endpoint.
const TokenEndpoint = "https://chat.qwen.ai/api/v1/oauth2/token"

// tokenEndpointOverride lets tests point refresh requests at a local
// server; empty means use TokenEndpoint.
var tokenEndpointOverride string

func tokenEndpoint() string {
	if tokenEndpointOverride != "" {
		return tokenEndpointOverride
	}
	return TokenEndpoint
}

// Refresher performs single-flight, expiry-gated OAuth token refresh and
// persists the result atomically (spec §4.6 Refresh). Non-cancellable per
// spec §5: "the first waiter drives, the rest await the result."
type Refresher struct {
	credentialsPath string
	clientID        string
	refreshSkew     time.Duration
	httpClient      *http.Client

	mu          sync.Mutex
	refreshing  bool
	waiters     []chan refreshOutcome
	current     Credentials
}

type refreshOutcome struct {
	creds Credentials
	err   error
}

// NewRefresher wraps credentialsPath, the client ID the token endpoint
// expects, and the initial credentials read at startup.
func NewRefresher(credentialsPath, clientID string, initial Credentials) *Refresher {
	return &Refresher{
		credentialsPath: credentialsPath,
		clientID:        clientID,
		refreshSkew:     DefaultRefreshSkew,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		current:         initial,
	}
}

// Current returns the refresher's in-memory view of the credentials,
// independent of the file watcher (see watcher.go for the reload path).
func (r *Refresher) Current() Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrent replaces the in-memory credentials, e.g. after a file-watch
// reload observes an externally updated file.
func (r *Refresher) SetCurrent(creds Credentials) {
	r.mu.Lock()
	r.current = creds
	r.mu.Unlock()
}

// EnsureFresh returns credentials valid for immediate use, refreshing
// first if the current ones are within refreshSkew of expiry. Concurrent
// callers during an in-flight refresh all receive the same outcome.
func (r *Refresher) EnsureFresh(ctx context.Context) (Credentials, error) {
	r.mu.Lock()
	creds := r.current
	if !creds.NeedsRefresh(time.Now(), r.refreshSkew) {
		r.mu.Unlock()
		return creds, nil
	}

	wait := make(chan refreshOutcome, 1)
	r.waiters = append(r.waiters, wait)
	alreadyRefreshing := r.refreshing
	r.refreshing = true
	r.mu.Unlock()

	if alreadyRefreshing {
		out := <-wait
		return out.creds, out.err
	}

	newCreds, err := r.doRefresh(context.WithoutCancel(ctx), creds)

	r.mu.Lock()
	if err == nil {
		r.current = newCreds
	}
	r.refreshing = false
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, w := range waiters {
		w <- refreshOutcome{creds: newCreds, err: err}
	}
	return newCreds, err
}

func (r *Refresher) doRefresh(ctx context.Context, creds Credentials) (Credentials, error) {
	operation := func() (Credentials, error) {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", creds.RefreshToken)
		if r.clientID != "" {
			form.Set("client_id", r.clientID)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint(), strings.NewReader(form.Encode()))
		if err != nil {
			return Credentials{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return Credentials{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return Credentials{}, fmt.Errorf("qwenoauth: token endpoint status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return Credentials{}, backoff.Permanent(fmt.Errorf("qwenoauth: token endpoint rejected refresh (%d)", resp.StatusCode))
		}

		var wire struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int64  `json:"expires_in"`
			ResourceURL  string `json:"resource_url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return Credentials{}, backoff.Permanent(fmt.Errorf("qwenoauth: decode token response: %w", err))
		}

		refreshToken := wire.RefreshToken
		if refreshToken == "" {
			refreshToken = creds.RefreshToken
		}
		return Credentials{
			AccessToken:  wire.AccessToken,
			RefreshToken: refreshToken,
			TokenType:    wire.TokenType,
			ExpiryMs:     time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second).UnixMilli(),
			ResourceURL:  wire.ResourceURL,
		}, nil
	}

	// Token refresh is single-shot: one attempt, no retry on transient
	// failure. backoff.Retry is kept only for its backoff.Permanent
	// short-circuit on non-retryable 4xx/decode errors.
	refreshed, err := backoff.Retry(ctx, operation, backoff.WithMaxTries(1))
	if err != nil {
		return Credentials{}, fmt.Errorf("qwenoauth: refresh failed: %w", err)
	}

	if err := SaveCredentials(r.credentialsPath, refreshed); err != nil {
		return Credentials{}, err
	}
	return refreshed, nil
}
