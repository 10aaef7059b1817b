// Package respmw implements the response middleware chain (spec §4.5):
// tool-call reactor dispatch, dangerous-command enforcement, pytest
// compression/full-suite steering, streaming JSON repair, and tool-call
// loop detection. Grounded on the same struct-of-function-fields idiom as
// pkg/reqmw, split into a Middleware (unary response transform, always
// present) and an optional StreamWrapper capability middlewares implement
// when they also need to see a streaming response's chunks.
package respmw

import (
	"context"
	"sort"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// Context carries per-response information middlewares need beyond the
// response and session state.
type Context struct {
	SessionID   string
	BackendName string
	ModelName   string
}

// Middleware transforms a non-streaming response. Priority is descending
// per spec §4.5 ("lower priorities run later; terminal steps run last"),
// so Chain sorts ascending-by-"runs later" meaning higher Priority runs
// first, mirroring reqmw's convention for consistency across both chains.
type Middleware interface {
	Name() string
	Priority() int
	Apply(ctx context.Context, mwCtx Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State)
}

// StreamWrapper is an optional capability: a Middleware that also
// transforms a streaming response's chunk sequence. Implementations must
// not block indefinitely — in practice this means forwarding a chunk as
// soon as its own buffering state allows, matching the non-blocking
// contract in spec §4.5.
type StreamWrapper interface {
	WrapStream(ctx context.Context, mwCtx Context, chunks <-chan domain.StreamChunk, state session.State) <-chan domain.StreamChunk
}

// Chain runs an ordered list of Middleware, and wraps streaming chunk
// channels through any middleware that also implements StreamWrapper.
type Chain struct {
	middlewares []Middleware
}

// NewChain sorts middlewares by descending priority.
func NewChain(middlewares ...Middleware) *Chain {
	sorted := make([]Middleware, len(middlewares))
	copy(sorted, middlewares)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Chain{middlewares: sorted}
}

// RunUnary applies every middleware's Apply in priority order.
func (c *Chain) RunUnary(ctx context.Context, mwCtx Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	for _, mw := range c.middlewares {
		resp, state = mw.Apply(ctx, mwCtx, resp, state)
	}
	return resp, state
}

// RunStream threads chunks through every middleware that implements
// StreamWrapper, in the same priority order as RunUnary.
func (c *Chain) RunStream(ctx context.Context, mwCtx Context, chunks <-chan domain.StreamChunk, state session.State) <-chan domain.StreamChunk {
	for _, mw := range c.middlewares {
		if wrapper, ok := mw.(StreamWrapper); ok {
			chunks = wrapper.WrapStream(ctx, mwCtx, chunks, state)
		}
	}
	return chunks
}
