package reqmw

import (
	"context"
	"testing"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

func TestChain_RunsInPriorityOrder(t *testing.T) {
	t.Parallel()

	var order []string
	chain := NewChain(
		recordingMiddleware{name: "low", priority: 1, order: &order},
		recordingMiddleware{name: "high", priority: 100, order: &order},
		recordingMiddleware{name: "mid", priority: 50, order: &order},
	)
	req := &domain.ChatRequest{Model: "gpt-4"}
	chain.Run(context.Background(), Context{}, req, session.NewState())

	want := []string{"high", "mid", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

type recordingMiddleware struct {
	name     string
	priority int
	order    *[]string
}

func (r recordingMiddleware) Name() string  { return r.name }
func (r recordingMiddleware) Priority() int { return r.priority }
func (r recordingMiddleware) Apply(_ context.Context, _ Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	*r.order = append(*r.order, r.name)
	return req, state
}

func TestEditPrecisionTuner_LowersTemperatureOnFailedEditSignal(t *testing.T) {
	t.Parallel()

	tuner := NewEditPrecisionTuner(DefaultEditPrecisionConfig())
	req := &domain.ChatRequest{
		Model: "gpt-4",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Text: "the SEARCH/REPLACE block was not found in the file"},
		},
	}
	out, _ := tuner.Apply(context.Background(), Context{}, req, session.NewState())
	if out.Temperature == nil || *out.Temperature != 0.1 {
		t.Fatalf("expected temperature lowered to 0.1, got %v", out.Temperature)
	}
	if out.TopP == nil || *out.TopP != 0.3 {
		t.Fatalf("expected top_p floored to 0.3, got %v", out.TopP)
	}
	mode, _ := out.InternalExtra("edit_precision_mode")
	if mode != true {
		t.Fatal("expected edit_precision_mode flag set")
	}
}

func TestEditPrecisionTuner_NoOpWithoutSignal(t *testing.T) {
	t.Parallel()

	tuner := NewEditPrecisionTuner(DefaultEditPrecisionConfig())
	req := &domain.ChatRequest{Model: "gpt-4", Messages: []domain.ChatMessage{{Role: domain.RoleUser, Text: "hello"}}}
	out, _ := tuner.Apply(context.Background(), Context{}, req, session.NewState())
	if out.Temperature != nil {
		t.Fatal("expected no temperature change")
	}
}

func TestOneoffConsumer_RewritesModelAndClearsState(t *testing.T) {
	t.Parallel()

	st := session.NewState().WithBackendConfig(session.NewState().BackendConfig.WithOneoff("openrouter", "gpt-4"))
	req := &domain.ChatRequest{Model: "whatever"}
	out, newState := NewOneoffConsumer().Apply(context.Background(), Context{}, req, st)

	if out.Model != "openrouter:gpt-4" {
		t.Fatalf("expected model rewritten, got %s", out.Model)
	}
	if newState.BackendConfig.HasOneoff() {
		t.Fatal("expected oneoff cleared from state")
	}
}

func TestFailoverExpander_ExpandsRoute(t *testing.T) {
	t.Parallel()

	st := session.NewState()
	st = st.WithBackendConfig(st.BackendConfig.WithRoute(session.FailoverRoute{
		Name:     "fast",
		Policy:   session.RoutePolicyModelOnly,
		Elements: []string{"openrouter:gpt-4", "openai:gpt-4"},
	}))
	req := &domain.ChatRequest{Model: "route:fast"}
	out, _ := NewFailoverExpander().Apply(context.Background(), Context{}, req, st)

	if out.Model != "openrouter:gpt-4" {
		t.Fatalf("expected model set to first element, got %s", out.Model)
	}
	elems, _ := out.InternalExtra("failover_elements")
	list, ok := elems.([]string)
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2 failover elements recorded, got %v", elems)
	}
}

func TestPlanningRouter_RedirectsToStrongModel(t *testing.T) {
	t.Parallel()

	st := session.NewState().WithPlanningPhaseConfig(session.PlanningPhaseConfig{
		Enabled:     true,
		StrongModel: "claude-strong",
		MaxTurns:    3,
	})
	req := &domain.ChatRequest{Model: "gpt-4"}
	out, newState := NewPlanningRouter().Apply(context.Background(), Context{}, req, st)

	if out.Model != "claude-strong" {
		t.Fatalf("expected redirect to strong model, got %s", out.Model)
	}
	if newState.PlanningPhaseTurnCount != 1 {
		t.Fatalf("expected turn count incremented, got %d", newState.PlanningPhaseTurnCount)
	}
}

func TestPlanningRouter_NoOpAfterMaxTurns(t *testing.T) {
	t.Parallel()

	st := session.NewState().WithPlanningPhaseConfig(session.PlanningPhaseConfig{
		Enabled:     true,
		StrongModel: "claude-strong",
		MaxTurns:    1,
	})
	st = st.IncrementPlanningTurn()
	req := &domain.ChatRequest{Model: "gpt-4"}
	out, _ := NewPlanningRouter().Apply(context.Background(), Context{}, req, st)

	if out.Model != "gpt-4" {
		t.Fatalf("expected no redirect after max turns, got %s", out.Model)
	}
}
