package command

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/llmgateway/proxycore/pkg/session"
)

// Deps are the external collaborators built-in handlers consult. They stay
// narrow function types rather than interfaces on other packages' types so
// command never imports backend or registry, avoiding an import cycle.
type Deps struct {
	// IsKnownBackend reports whether name is a registered, functional
	// backend. Required for backend()/model() validation.
	IsKnownBackend func(name string) bool
}

var openAIURLPattern = regexp.MustCompile(`^https?://`)
var routeElementPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+[:/][A-Za-z0-9_.\-/]+$`)

var truthyValues = map[string]bool{"true": true, "True": true, "yes": true, "1": true, "on": true}
var falseyValues = map[string]bool{"false": true, "False": true, "no": true, "0": true, "off": true}

func parseBool(raw string, present bool) (value bool, ok bool) {
	if !present || raw == "" {
		return true, true // missing arg defaults to enable, per spec §4.2
	}
	if truthyValues[raw] {
		return true, true
	}
	if falseyValues[raw] {
		return false, true
	}
	return false, false
}

// RegisterBuiltins installs every handler named in spec §4.2 into r.
func RegisterBuiltins(r *Registry, deps Deps) {
	r.Register("model", "model(name) — sets backend_config.model, splitting on ':' or '/' into backend+model", handleModel(deps))
	r.Register("backend", "backend(name) — sets backend_config.backend_type", handleBackend(deps))
	r.Register("openai-url", "openai-url(url) — sets the OpenAI-compatible base URL", handleOpenAIURL)
	r.Register("temperature", "temperature(value) — sets sampling temperature in [0,1]", handleTemperature)
	r.Register("oneoff", "oneoff(backend/model) — one-shot override for the next request", handleOneoff)
	r.Register("hello", "hello — greets and marks the session as having said hello", handleHello)
	r.Register("pwd", "pwd — reports the configured project directory", handlePwd)
	r.Register("loop-detection", "loop-detection(enabled?) — toggles text loop detection", handleLoopDetection)
	r.Register("tool-loop-detection", "tool-loop-detection(enabled?) — toggles tool-call loop detection", handleToolLoopDetection)
	r.Register("tool-loop-max-repeats", "tool-loop-max-repeats(max_repeats=N) — N>=2", handleToolLoopMaxRepeats)
	r.Register("tool-loop-ttl", "tool-loop-ttl(ttl_seconds=N) — N>=1", handleToolLoopTTL)
	r.Register("tool-loop-mode", "tool-loop-mode(mode) — mode in {break, chance_then_break}", handleToolLoopMode)
	r.Register("create-failover-route", "create-failover-route(name,policy) — policy in {k,m}", handleCreateFailoverRoute)
	r.Register("delete-failover-route", "delete-failover-route(name) — silent on missing", handleDeleteFailoverRoute)
	r.Register("list-failover-routes", "list-failover-routes — lists name:policy, one per line", handleListFailoverRoutes)
	r.Register("route-append", "route-append(name,element) — appends backend:model to a route", handleRouteAppend)
	r.Register("route-prepend", "route-prepend(name,element) — prepends backend:model to a route", handleRoutePrepend)
	r.Register("route-clear", "route-clear(name) — empties a route's elements", handleRouteClear)
	r.Register("route-list", "route-list(name) — lists a route's elements in order", handleRouteList)
	r.Register("unset", "unset(k1,k2,...) — clears each named setting; unknown keys ignored", handleUnset)
	r.Register("set", "set(key=v,...) — multi-key setter, dispatches each pair to its own handler", handleSet(r))
	r.Register("help", "help([command]) — shows usage for one command, or lists all registered names", handleHelp(r))
}

func handleModel(deps Deps) Handler {
	return func(cmd Command, state session.State) Result {
		value := firstValueOrKey(cmd)
		if value == "" {
			bc := state.BackendConfig
			bc.Model = ""
			return Result{Success: true, Message: "Model cleared.", State: state.WithBackendConfig(bc)}
		}
		if deps.IsKnownBackend != nil {
			if backend, _, ok := splitForValidation(value); ok && !deps.IsKnownBackend(backend) {
				return Result{Success: false, Message: fmt.Sprintf("Unknown backend %q.", backend), State: state}
			}
		}
		bc := state.BackendConfig.WithModel(value)
		return Result{Success: true, Message: fmt.Sprintf("Model changed to %s.", bc.Model), State: state.WithBackendConfig(bc)}
	}
}

func splitForValidation(name string) (backend, model string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' || name[i] == '/' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}

func handleBackend(deps Deps) Handler {
	return func(cmd Command, state session.State) Result {
		value := firstValueOrKey(cmd)
		if deps.IsKnownBackend != nil && !deps.IsKnownBackend(value) {
			bc := session.BackendConfig{}
			return Result{Success: true, Message: fmt.Sprintf("Unknown backend %q; state cleared.", value), State: state.WithBackendConfig(bc)}
		}
		bc := state.BackendConfig.WithBackend(value)
		return Result{Success: true, Message: fmt.Sprintf("Backend changed to %s.", value), State: state.WithBackendConfig(bc)}
	}
}

func handleOpenAIURL(cmd Command, state session.State) Result {
	value := firstValueOrKey(cmd)
	if !openAIURLPattern.MatchString(value) {
		return Result{Success: false, Message: "openai-url must start with http:// or https://.", State: state}
	}
	bc := state.BackendConfig.WithOpenAIURL(value)
	return Result{Success: true, Message: fmt.Sprintf("OpenAI URL changed to %s.", value), State: state.WithBackendConfig(bc)}
}

func handleTemperature(cmd Command, state session.State) Result {
	raw := firstValueOrKey(cmd)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return Result{Success: false, Message: "temperature must be a number in [0,1].", State: state}
	}
	rc := state.ReasoningConfig.WithTemperature(v)
	return Result{Success: true, Message: fmt.Sprintf("Temperature changed to %.2f.", v), State: state.WithReasoningConfig(rc)}
}

func handleOneoff(cmd Command, state session.State) Result {
	raw := firstValueOrKey(cmd)
	backend, model, ok := splitForValidation(raw)
	if !ok || backend == "" || model == "" {
		return Result{Success: false, Message: "oneoff requires backend:model or backend/model.", State: state}
	}
	bc := state.BackendConfig.WithOneoff(backend, model)
	return Result{Success: true, Message: fmt.Sprintf("Next request will use %s:%s.", backend, model), State: state.WithBackendConfig(bc)}
}

func handleHello(cmd Command, state session.State) Result {
	return Result{Success: true, Message: "Hello! How can I help you today?", State: state.WithHelloRequested(true)}
}

func handlePwd(cmd Command, state session.State) Result {
	if state.ProjectDir == "" {
		return Result{Success: true, Message: "Project directory not set.", State: state}
	}
	return Result{Success: true, Message: state.ProjectDir, State: state}
}

func handleLoopDetection(cmd Command, state session.State) Result {
	raw, present := cmd.Arg("enabled")
	if !present {
		raw = firstValueOrKey(cmd)
		present = raw != ""
	}
	enabled, ok := parseBool(raw, present)
	if !ok {
		return Result{Success: false, Message: "loop-detection expects a boolean value.", State: state}
	}
	lc := state.LoopConfig
	lc.LoopDetectionEnabled = enabled
	return Result{Success: true, Message: fmt.Sprintf("Loop detection %s.", onOff(enabled)), State: state.WithLoopConfig(lc)}
}

func handleToolLoopDetection(cmd Command, state session.State) Result {
	raw, present := cmd.Arg("enabled")
	if !present {
		raw = firstValueOrKey(cmd)
		present = raw != ""
	}
	enabled, ok := parseBool(raw, present)
	if !ok {
		return Result{Success: false, Message: "tool-loop-detection expects a boolean value.", State: state}
	}
	lc := state.LoopConfig
	lc.ToolLoopDetectionEnabled = enabled
	return Result{Success: true, Message: fmt.Sprintf("Tool-loop detection %s.", onOff(enabled)), State: state.WithLoopConfig(lc)}
}

func handleToolLoopMaxRepeats(cmd Command, state session.State) Result {
	raw, _ := cmd.Arg("max_repeats")
	if raw == "" {
		raw = firstValueOrKey(cmd)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 2 {
		return Result{Success: false, Message: "tool-loop-max-repeats requires an integer >= 2.", State: state}
	}
	lc := state.LoopConfig
	lc.ToolLoopMaxRepeats = &n
	return Result{Success: true, Message: fmt.Sprintf("Tool-loop max repeats set to %d.", n), State: state.WithLoopConfig(lc)}
}

func handleToolLoopTTL(cmd Command, state session.State) Result {
	raw, _ := cmd.Arg("ttl_seconds")
	if raw == "" {
		raw = firstValueOrKey(cmd)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return Result{Success: false, Message: "tool-loop-ttl requires an integer >= 1.", State: state}
	}
	lc := state.LoopConfig
	lc.ToolLoopTTLSeconds = &n
	return Result{Success: true, Message: fmt.Sprintf("Tool-loop TTL set to %d seconds.", n), State: state.WithLoopConfig(lc)}
}

func handleToolLoopMode(cmd Command, state session.State) Result {
	raw := firstValueOrKey(cmd)
	mode := session.ToolLoopMode(raw)
	if mode != session.ToolLoopModeBreak && mode != session.ToolLoopModeChanceThenBreak {
		return Result{Success: false, Message: "tool-loop-mode must be 'break' or 'chance_then_break'.", State: state}
	}
	lc := state.LoopConfig
	lc.ToolLoopMode = mode
	return Result{Success: true, Message: fmt.Sprintf("Tool-loop mode set to %s.", mode), State: state.WithLoopConfig(lc)}
}

func handleCreateFailoverRoute(cmd Command, state session.State) Result {
	name, policyRaw := routeArgs(cmd)
	if name == "" {
		return Result{Success: false, Message: "create-failover-route requires a name.", State: state}
	}
	policy := session.RoutePolicy(policyRaw)
	if policy != session.RoutePolicyKeyPreserving && policy != session.RoutePolicyModelOnly {
		return Result{Success: false, Message: "policy must be 'k' or 'm'.", State: state}
	}
	bc := state.BackendConfig.WithRoute(session.FailoverRoute{Name: name, Policy: policy})
	return Result{Success: true, Message: fmt.Sprintf("Failover route %q created.", name), State: state.WithBackendConfig(bc)}
}

func routeArgs(cmd Command) (name, second string) {
	if v, ok := cmd.Arg("name"); ok {
		name = v
	}
	if v, ok := cmd.Arg("policy"); ok {
		second = v
	}
	if v, ok := cmd.Arg("element"); ok {
		second = v
	}
	if name != "" {
		return name, second
	}
	// Positional fallback: the first two keys in sorted order. Args is a
	// map, so the order the arguments were written in is not known here.
	keys := sortedKeys(cmd.Args)
	if len(keys) > 0 {
		name = keys[0]
	}
	if len(keys) > 1 && second == "" {
		second = keys[1]
	}
	return name, second
}

func sortedKeys(args map[string]string) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func handleDeleteFailoverRoute(cmd Command, state session.State) Result {
	name := firstValueOrKey(cmd)
	bc := state.BackendConfig.WithoutRoute(name)
	return Result{Success: true, Message: fmt.Sprintf("Failover route %q deleted.", name), State: state.WithBackendConfig(bc)}
}

func handleListFailoverRoutes(cmd Command, state session.State) Result {
	names := make([]string, 0, len(state.BackendConfig.FailoverRoutes))
	for n := range state.BackendConfig.FailoverRoutes {
		names = append(names, n)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, n := range names {
		route := state.BackendConfig.FailoverRoutes[n]
		lines = append(lines, fmt.Sprintf("%s:%s", route.Name, route.Policy))
	}
	return Result{Success: true, Message: strings.Join(lines, "\n"), State: state}
}

func handleRouteAppend(cmd Command, state session.State) Result {
	return mutateRoute(cmd, state, func(r session.FailoverRoute, element string) session.FailoverRoute {
		return r.WithAppended(element)
	}, "appended to")
}

func handleRoutePrepend(cmd Command, state session.State) Result {
	return mutateRoute(cmd, state, func(r session.FailoverRoute, element string) session.FailoverRoute {
		return r.WithPrepended(element)
	}, "prepended to")
}

func mutateRoute(cmd Command, state session.State, mutate func(session.FailoverRoute, string) session.FailoverRoute, verb string) Result {
	name, element := routeArgs(cmd)
	if name == "" || element == "" {
		return Result{Success: false, Message: "route name and element are both required.", State: state}
	}
	if !routeElementPattern.MatchString(element) {
		return Result{Success: false, Message: fmt.Sprintf("%q is not a valid backend:model element.", element), State: state}
	}
	route, ok := state.BackendConfig.FailoverRoutes[name]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("no such failover route %q.", name), State: state}
	}
	route = mutate(route, element)
	bc := state.BackendConfig.WithRoute(route)
	return Result{Success: true, Message: fmt.Sprintf("%s %s route %q.", element, verb, name), State: state.WithBackendConfig(bc)}
}

func handleRouteClear(cmd Command, state session.State) Result {
	name := firstValueOrKey(cmd)
	route, ok := state.BackendConfig.FailoverRoutes[name]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("no such failover route %q.", name), State: state}
	}
	bc := state.BackendConfig.WithRoute(route.Cleared())
	return Result{Success: true, Message: fmt.Sprintf("Route %q cleared.", name), State: state.WithBackendConfig(bc)}
}

func handleRouteList(cmd Command, state session.State) Result {
	name := firstValueOrKey(cmd)
	route, ok := state.BackendConfig.FailoverRoutes[name]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("no such failover route %q.", name), State: state}
	}
	return Result{Success: true, Message: strings.Join(route.Elements, "\n"), State: state}
}

func handleUnset(cmd Command, state session.State) Result {
	bc := state.BackendConfig
	for key := range cmd.Args {
		switch key {
		case "model":
			bc = bc.WithModel("")
		case "backend":
			bc = bc.WithBackend("")
		case "openai-url":
			bc = bc.WithOpenAIURL("")
		}
	}
	return Result{Success: true, Message: "Cleared.", State: state.WithBackendConfig(bc)}
}

// handleSet dispatches each key=value pair to its own registered handler,
// threading state through one pair after another (spec §4.2: "dispatches each
// key to its sub-handler"). Map iteration is non-deterministic, so order
// among pairs within one set() call is unspecified but individually
// correct, matching the spec's silence on sub-handler ordering.
func handleSet(r *Registry) Handler {
	return func(cmd Command, state session.State) Result {
		var messages []string
		success := true
		for key, value := range cmd.Args {
			h, ok := r.Lookup(key)
			if !ok {
				continue
			}
			sub := Command{Name: key, Args: map[string]string{key: value}}
			res := h(sub, state)
			state = res.State
			messages = append(messages, res.Message)
			if !res.Success {
				success = false
			}
		}
		return Result{Success: success, Message: strings.Join(messages, " "), State: state}
	}
}

func handleHelp(r *Registry) Handler {
	return func(cmd Command, state session.State) Result {
		name := firstValueOrKey(cmd)
		if name == "" {
			return Result{Success: true, Message: "Available commands: " + strings.Join(r.Names(), ", "), State: state}
		}
		usage, ok := r.Help(name)
		if !ok {
			return Result{Success: false, Message: fmt.Sprintf("unknown command %q.", name), State: state}
		}
		return Result{Success: true, Message: usage, State: state}
	}
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

// firstValueOrKey returns the value of the sole argument regardless of
// whether it was supplied as "name=value" or as a bare positional token
// (in which case the token itself is both key and intended value, e.g.
// "!/backend(openrouter)").
func firstValueOrKey(cmd Command) string {
	for k, v := range cmd.Args {
		if v != "" {
			return v
		}
		return k
	}
	return ""
}
