package reqmw

import (
	"context"
	"strings"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// FailoverPriority runs after oneoff consumption: a oneoff override's
// model could itself have named a route, so route expansion must see the
// model oneoff already rewrote.
const FailoverPriority = 80

const routePrefix = "route:"

// FailoverExpander rewrites a "route:<name>" model into the route's
// ordered backend:model elements, recorded as internal extra_body state
// for the connector dispatcher to iterate (spec §4.4, §4.6: "subsequent
// dispatch iterates until one succeeds").
type FailoverExpander struct{}

func NewFailoverExpander() *FailoverExpander { return &FailoverExpander{} }

func (e *FailoverExpander) Name() string  { return "failover_expander" }
func (e *FailoverExpander) Priority() int { return FailoverPriority }

func (e *FailoverExpander) Apply(_ context.Context, _ Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	if !strings.HasPrefix(req.Model, routePrefix) {
		return req, state
	}
	name := strings.TrimPrefix(req.Model, routePrefix)
	route, ok := state.BackendConfig.FailoverRoutes[name]
	if !ok || len(route.Elements) == 0 {
		return req, state
	}

	out := req.CloneShallow()
	out.Model = route.Elements[0]
	out.SetInternalExtra("failover_elements", append([]string(nil), route.Elements...))
	out.SetInternalExtra("failover_policy", string(route.Policy))
	out.SetInternalExtra("failover_route_name", name)
	return out, state
}
