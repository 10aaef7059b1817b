package reqmw

import (
	"context"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// OneoffPriority runs after edit-precision tuning but before failover
// route expansion, since a oneoff target may itself be a route name.
const OneoffPriority = 90

// OneoffConsumer rewrites the request's model to a pending one-shot
// backend/model override and clears it from session state so it is never
// reused (spec §4.4, §3 invariant).
type OneoffConsumer struct{}

func NewOneoffConsumer() *OneoffConsumer { return &OneoffConsumer{} }

func (c *OneoffConsumer) Name() string  { return "oneoff_consumer" }
func (c *OneoffConsumer) Priority() int { return OneoffPriority }

func (c *OneoffConsumer) Apply(_ context.Context, _ Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	if !state.BackendConfig.HasOneoff() {
		return req, state
	}
	backend, model, cleared := state.BackendConfig.ConsumeOneoff()
	state = state.WithBackendConfig(cleared)

	out := req.CloneShallow()
	out.Model = backend + ":" + model
	return out, state
}
