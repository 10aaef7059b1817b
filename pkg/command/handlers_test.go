package command

import (
	"testing"

	"github.com/llmgateway/proxycore/pkg/session"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r, Deps{
		IsKnownBackend: func(name string) bool {
			return name == "openrouter" || name == "openai"
		},
	})
	return r
}

func TestHandleModel_SplitsBackendAndModel(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, ok := r.Lookup("model")
	if !ok {
		t.Fatal("expected model handler registered")
	}
	cmd := Command{Name: "model", Args: map[string]string{"name": "openrouter:gpt-4"}}
	res := h(cmd, session.NewState())
	if !res.Success {
		t.Fatalf("expected success, got message %q", res.Message)
	}
	if res.State.BackendConfig.BackendType != "openrouter" || res.State.BackendConfig.Model != "gpt-4" {
		t.Fatalf("unexpected backend config: %+v", res.State.BackendConfig)
	}
}

func TestHandleSet_ModelSplitsBackendAndModel(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, ok := r.Lookup("set")
	if !ok {
		t.Fatal("expected set handler registered")
	}
	cmd := Command{Name: "set", Args: map[string]string{"model": "openrouter:gpt-4"}}
	res := h(cmd, session.NewState())
	if !res.Success {
		t.Fatalf("expected success, got message %q", res.Message)
	}
	if res.State.BackendConfig.BackendType != "openrouter" || res.State.BackendConfig.Model != "gpt-4" {
		t.Fatalf("unexpected backend config: %+v", res.State.BackendConfig)
	}
}

func TestHandleModel_UnknownBackendFails(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("model")
	cmd := Command{Name: "model", Args: map[string]string{"name": "unknown:gpt-4"}}
	res := h(cmd, session.NewState())
	if res.Success {
		t.Fatal("expected failure for unknown backend")
	}
}

func TestHandleTemperature_ValidatesRange(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("temperature")

	ok := h(Command{Args: map[string]string{"0.5": ""}}, session.NewState())
	if !ok.Success {
		t.Fatalf("expected success for in-range temperature: %s", ok.Message)
	}
	if ok.State.ReasoningConfig.Temperature == nil || *ok.State.ReasoningConfig.Temperature != 0.5 {
		t.Fatal("expected temperature set to 0.5")
	}

	bad := h(Command{Args: map[string]string{"5": ""}}, session.NewState())
	if bad.Success {
		t.Fatal("expected failure for out-of-range temperature")
	}
}

func TestHandleOneoff_SetsAndConsumes(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("oneoff")
	res := h(Command{Args: map[string]string{"openrouter:gpt-4": ""}}, session.NewState())
	if !res.Success {
		t.Fatalf("expected success: %s", res.Message)
	}
	if !res.State.BackendConfig.HasOneoff() {
		t.Fatal("expected oneoff pending")
	}
	backend, model, cleared := res.State.BackendConfig.ConsumeOneoff()
	if backend != "openrouter" || model != "gpt-4" {
		t.Fatalf("unexpected oneoff values: %s %s", backend, model)
	}
	if cleared.HasOneoff() {
		t.Fatal("expected oneoff cleared after consumption")
	}
}

func TestHandlePwd_Unset(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("pwd")
	res := h(Command{}, session.NewState())
	if res.Message != "Project directory not set." {
		t.Fatalf("unexpected message: %q", res.Message)
	}
}

func TestHandleLoopDetection_DefaultsToEnable(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("loop-detection")
	st := session.NewState()
	st.LoopConfig.LoopDetectionEnabled = false

	res := h(Command{}, st)
	if !res.Success || !res.State.LoopConfig.LoopDetectionEnabled {
		t.Fatal("expected loop detection enabled by default when arg missing")
	}
}

func TestHandleCreateFailoverRoute_ValidatesPolicy(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("create-failover-route")
	res := h(Command{Args: map[string]string{"name": "fast", "policy": "k"}}, session.NewState())
	if !res.Success {
		t.Fatalf("expected success: %s", res.Message)
	}
	if _, ok := res.State.BackendConfig.FailoverRoutes["fast"]; !ok {
		t.Fatal("expected route registered")
	}

	bad := h(Command{Args: map[string]string{"name": "fast", "policy": "x"}}, session.NewState())
	if bad.Success {
		t.Fatal("expected failure for invalid policy")
	}
}

func TestHandleRouteAppend_ValidatesElement(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	create, _ := r.Lookup("create-failover-route")
	created := create(Command{Args: map[string]string{"name": "fast", "policy": "m"}}, session.NewState())

	append_, _ := r.Lookup("route-append")
	res := append_(Command{Args: map[string]string{"name": "fast", "element": "openrouter:gpt-4"}}, created.State)
	if !res.Success {
		t.Fatalf("expected success: %s", res.Message)
	}
	route := res.State.BackendConfig.FailoverRoutes["fast"]
	if len(route.Elements) != 1 || route.Elements[0] != "openrouter:gpt-4" {
		t.Fatalf("unexpected route elements: %+v", route.Elements)
	}

	bad := append_(Command{Args: map[string]string{"name": "fast", "element": "not-valid"}}, created.State)
	if bad.Success {
		t.Fatal("expected failure for malformed element")
	}
}

func TestHandleHelp_ListsNames(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	h, _ := r.Lookup("help")
	res := h(Command{}, session.NewState())
	if res.Message == "" {
		t.Fatal("expected non-empty help listing")
	}
}
