package reqmw

import (
	"context"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// PlanningPriority runs last: it should see the model the caller (or an
// earlier override) actually chose before deciding whether to override it
// again with the planning-phase strong model.
const PlanningPriority = 10

// PlanningRouter redirects early turns of a session to a stronger model
// while the session's planning-phase turn/file-write budgets remain, per
// spec §4.4. The turn counter is incremented here, since "on completion"
// in the spec means once this middleware has acted for the turn, not once
// the backend call succeeds — counting retries again would double-count
// under failover.
type PlanningRouter struct{}

func NewPlanningRouter() *PlanningRouter { return &PlanningRouter{} }

func (p *PlanningRouter) Name() string  { return "planning_phase_router" }
func (p *PlanningRouter) Priority() int { return PlanningPriority }

func (p *PlanningRouter) Apply(_ context.Context, _ Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	if !state.PlanningPhaseActive() {
		return req, state
	}

	out := req.CloneShallow()
	out.Model = state.PlanningPhaseConfig.StrongModel
	state = state.IncrementPlanningTurn()
	return out, state
}
