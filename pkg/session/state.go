package session

import "time"

// State is the session's immutable configuration snapshot. Every mutation
// method returns a new State; nothing is mutated in place. Structural
// sharing is used where sub-structures are themselves copy-on-write (see
// BackendConfig.clone), so an unrelated with_* call does not deep-copy the
// whole tree.
type State struct {
	BackendConfig       BackendConfig
	ReasoningConfig     ReasoningConfig
	LoopConfig          LoopConfig
	PlanningPhaseConfig PlanningPhaseConfig

	PlanningPhaseTurnCount      int
	PlanningPhaseFileWriteCount int

	Project    string
	ProjectDir string

	HelloRequested           bool
	InteractiveJustEnabled   bool
	IsClineAgent             bool
	CompressNextToolCallReply bool

	// LastFullSuitePytestAt records when a full-suite pytest invocation was
	// last swallowed, so a later full-suite invocation within the handler's
	// TTL can be allowed through instead of swallowed again.
	LastFullSuitePytestAt *time.Time

	// StreamRepairEnabled gates the streaming JSON repair response
	// middleware (spec §4.5/§4.8).
	StreamRepairEnabled bool
}

// NewState returns the default session state: no backend pinned, loop
// detection on, tool-loop detection on with sane defaults, planning phase
// off.
func NewState() State {
	maxRepeats := 3
	ttl := 120
	return State{
		LoopConfig: LoopConfig{
			LoopDetectionEnabled:     true,
			ToolLoopDetectionEnabled: true,
			ToolLoopMaxRepeats:       &maxRepeats,
			ToolLoopTTLSeconds:       &ttl,
			ToolLoopMode:             ToolLoopModeBreak,
		},
		BackendConfig: BackendConfig{
			FailoverRoutes: map[string]FailoverRoute{},
		},
	}
}

// WithBackendConfig returns a copy with BackendConfig replaced.
func (s State) WithBackendConfig(cfg BackendConfig) State {
	s.BackendConfig = cfg
	return s
}

// WithReasoningConfig returns a copy with ReasoningConfig replaced.
func (s State) WithReasoningConfig(cfg ReasoningConfig) State {
	s.ReasoningConfig = cfg
	return s
}

// WithLoopConfig returns a copy with LoopConfig replaced.
func (s State) WithLoopConfig(cfg LoopConfig) State {
	s.LoopConfig = cfg
	return s
}

// WithPlanningPhaseConfig returns a copy with PlanningPhaseConfig replaced.
func (s State) WithPlanningPhaseConfig(cfg PlanningPhaseConfig) State {
	s.PlanningPhaseConfig = cfg
	return s
}

// WithProjectDir returns a copy with ProjectDir set.
func (s State) WithProjectDir(dir string) State {
	s.ProjectDir = dir
	return s
}

// WithHelloRequested returns a copy with HelloRequested set.
func (s State) WithHelloRequested(v bool) State {
	s.HelloRequested = v
	return s
}

// WithCompressNextToolCallReply returns a copy with the flag set.
func (s State) WithCompressNextToolCallReply(v bool) State {
	s.CompressNextToolCallReply = v
	return s
}

// WithLastFullSuitePytestAt returns a copy with the timestamp set.
func (s State) WithLastFullSuitePytestAt(t time.Time) State {
	s.LastFullSuitePytestAt = &t
	return s
}

// WithStreamRepairEnabled returns a copy with the flag set.
func (s State) WithStreamRepairEnabled(v bool) State {
	s.StreamRepairEnabled = v
	return s
}

// IncrementPlanningTurn returns a copy with the turn counter incremented.
func (s State) IncrementPlanningTurn() State {
	s.PlanningPhaseTurnCount++
	return s
}

// IncrementPlanningFileWrites returns a copy with the file-write counter
// incremented by n.
func (s State) IncrementPlanningFileWrites(n int) State {
	s.PlanningPhaseFileWriteCount += n
	return s
}

// PlanningPhaseActive reports whether the planning-phase router should still
// redirect to the strong model for the next turn (spec §3 invariant: the
// turn-count comparison never mutates config, only read here).
func (s State) PlanningPhaseActive() bool {
	cfg := s.PlanningPhaseConfig
	if !cfg.Enabled || cfg.StrongModel == "" {
		return false
	}
	if cfg.MaxTurns > 0 && s.PlanningPhaseTurnCount >= cfg.MaxTurns {
		return false
	}
	if cfg.MaxFileWrites > 0 && s.PlanningPhaseFileWriteCount >= cfg.MaxFileWrites {
		return false
	}
	return true
}

// InteractionHandler identifies who produced a SessionInteraction's response.
type InteractionHandler string

const (
	HandlerProxy   InteractionHandler = "proxy"
	HandlerBackend InteractionHandler = "backend"
)

// Interaction is one recorded turn of a session's history.
type Interaction struct {
	Prompt     string
	Handler    InteractionHandler
	Backend    string
	Model      string
	Project    string
	Parameters map[string]interface{}
	Response   string
	Usage      *Usage
	Timestamp  time.Time
}

// Usage mirrors domain.Usage without importing the domain package, so
// session stays a leaf dependency. The HTTP pipeline records interactions
// without it; no code in this module converts domain.Usage into it.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// maxHistoryEntries bounds per-session interaction retention (spec §3:
// "default unbounded but eviction after 1000 entries per session").
const maxHistoryEntries = 1000

// AppendInteraction returns history with interaction appended, evicting the
// oldest entry once the bound is exceeded.
func AppendInteraction(history []Interaction, interaction Interaction) []Interaction {
	history = append(history, interaction)
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}
	return history
}
