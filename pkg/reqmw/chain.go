// Package reqmw implements the request middleware chain: a priority-ordered
// sequence of transforms applied to an inbound ChatRequest before it is
// dispatched to a backend connector (spec §4.4). Grounded on the teacher's
// struct-of-function-fields LanguageModelMiddleware
// (pkg/middleware/language_model_middleware.go), generalized to a named,
// registrable interface since the spec requires middlewares be looked up
// and ordered by declared priority rather than composed by construction
// order alone.
package reqmw

import (
	"context"
	"sort"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// Context carries per-request information middlewares may need beyond the
// request and session state themselves.
type Context struct {
	SessionID string
}

// Middleware transforms a request and/or the session state driving it.
// Higher Priority runs first (spec §4.4: "ordered by declared priority,
// higher first for requests").
type Middleware interface {
	Name() string
	Priority() int
	Apply(ctx context.Context, mwCtx Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State)
}

// Chain runs an ordered list of Middleware.
type Chain struct {
	middlewares []Middleware
}

// NewChain sorts middlewares by descending priority and returns a Chain
// that applies them in that order.
func NewChain(middlewares ...Middleware) *Chain {
	sorted := make([]Middleware, len(middlewares))
	copy(sorted, middlewares)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Chain{middlewares: sorted}
}

// Run applies every middleware in priority order, threading the
// (possibly-replaced) request and session state through each step.
func (c *Chain) Run(ctx context.Context, mwCtx Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	for _, mw := range c.middlewares {
		req, state = mw.Apply(ctx, mwCtx, req, state)
	}
	return req, state
}
