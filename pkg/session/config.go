package session

// BackendConfig carries the session's backend/model selection and the
// named failover routes it has defined. Zero value means "use process
// defaults."
type BackendConfig struct {
	BackendType string
	Model       string
	OpenAIURL   string

	InteractiveMode bool

	// OneoffBackend/OneoffModel are either both set or both unset; they are
	// consumed exactly once by the next request (spec §3 invariant).
	OneoffBackend string
	OneoffModel   string

	FailoverRoutes map[string]FailoverRoute
}

// WithModel returns a copy with Model set. If name contains ":" or "/" it is
// split into backend+model and both are set, mirroring the `model()` command
// handler semantics in spec §4.2.
func (c BackendConfig) WithModel(name string) BackendConfig {
	clone := c.clone()
	if backend, model, ok := splitBackendModel(name); ok {
		clone.BackendType = backend
		clone.Model = model
		return clone
	}
	clone.Model = name
	return clone
}

// WithBackend returns a copy with BackendType set.
func (c BackendConfig) WithBackend(name string) BackendConfig {
	clone := c.clone()
	clone.BackendType = name
	return clone
}

// WithOpenAIURL returns a copy with OpenAIURL set.
func (c BackendConfig) WithOpenAIURL(url string) BackendConfig {
	clone := c.clone()
	clone.OpenAIURL = url
	return clone
}

// WithOneoff returns a copy with the one-shot override set.
func (c BackendConfig) WithOneoff(backend, model string) BackendConfig {
	clone := c.clone()
	clone.OneoffBackend = backend
	clone.OneoffModel = model
	return clone
}

// ConsumeOneoff returns a copy with the one-shot override cleared, along
// with the values it held (empty strings if unset).
func (c BackendConfig) ConsumeOneoff() (backend, model string, cleared BackendConfig) {
	backend, model = c.OneoffBackend, c.OneoffModel
	cleared = c.clone()
	cleared.OneoffBackend = ""
	cleared.OneoffModel = ""
	return backend, model, cleared
}

// HasOneoff reports whether a one-shot override is pending.
func (c BackendConfig) HasOneoff() bool {
	return c.OneoffBackend != "" && c.OneoffModel != ""
}

// WithRoute returns a copy with route registered or replaced.
func (c BackendConfig) WithRoute(route FailoverRoute) BackendConfig {
	clone := c.clone()
	clone.FailoverRoutes[route.Name] = route
	return clone
}

// WithoutRoute returns a copy with the named route removed (silent no-op if
// missing, per spec §4.2 delete-failover-route).
func (c BackendConfig) WithoutRoute(name string) BackendConfig {
	clone := c.clone()
	delete(clone.FailoverRoutes, name)
	return clone
}

func (c BackendConfig) clone() BackendConfig {
	clone := c
	clone.FailoverRoutes = make(map[string]FailoverRoute, len(c.FailoverRoutes))
	for k, v := range c.FailoverRoutes {
		elems := make([]string, len(v.Elements))
		copy(elems, v.Elements)
		v.Elements = elems
		clone.FailoverRoutes[k] = v
	}
	return clone
}

func splitBackendModel(name string) (backend, model string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' || name[i] == '/' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}

// RoutePolicy selects how a failover route's elements are interpreted.
type RoutePolicy string

const (
	// RoutePolicyKeyPreserving ("k") keeps the caller's original API key
	// when switching elements.
	RoutePolicyKeyPreserving RoutePolicy = "k"
	// RoutePolicyModelOnly ("m") only switches backend:model, nothing else.
	RoutePolicyModelOnly RoutePolicy = "m"
)

// FailoverRoute is a named, ordered list of "backend:model" targets
// attempted in order until one succeeds.
type FailoverRoute struct {
	Name     string
	Policy   RoutePolicy
	Elements []string
}

// WithAppended returns a copy with element appended to the end.
func (r FailoverRoute) WithAppended(element string) FailoverRoute {
	elems := make([]string, len(r.Elements)+1)
	copy(elems, r.Elements)
	elems[len(r.Elements)] = element
	r.Elements = elems
	return r
}

// WithPrepended returns a copy with element inserted at the front.
func (r FailoverRoute) WithPrepended(element string) FailoverRoute {
	elems := make([]string, len(r.Elements)+1)
	elems[0] = element
	copy(elems[1:], r.Elements)
	r.Elements = elems
	return r
}

// Cleared returns a copy with no elements.
func (r FailoverRoute) Cleared() FailoverRoute {
	r.Elements = nil
	return r
}

// ReasoningConfig carries sampling/generation overrides layered onto a
// request by the session.
type ReasoningConfig struct {
	Temperature      *float64
	TopP             *float64
	ReasoningEffort  string
	ThinkingBudget   *int
	GenerationConfig map[string]interface{}
}

// WithTemperature returns a copy with Temperature set.
func (c ReasoningConfig) WithTemperature(v float64) ReasoningConfig {
	c.Temperature = &v
	return c
}

// ToolLoopMode controls how tool-call loop detection reacts to a repeat.
type ToolLoopMode string

const (
	ToolLoopModeBreak           ToolLoopMode = "break"
	ToolLoopModeChanceThenBreak ToolLoopMode = "chance_then_break"
)

// LoopConfig carries loop-detection settings (text loops and tool-call
// loops are configured independently per spec §3).
type LoopConfig struct {
	LoopDetectionEnabled     bool
	ToolLoopDetectionEnabled bool
	ToolLoopMaxRepeats       *int
	ToolLoopTTLSeconds       *int
	ToolLoopMode             ToolLoopMode
}

// PlanningPhaseConfig routes early turns of a session to a stronger model
// until turn/file-write budgets are exhausted.
type PlanningPhaseConfig struct {
	Enabled      bool
	StrongModel  string
	MaxTurns     int
	MaxFileWrites int
}
