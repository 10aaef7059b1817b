// Package registry is the process-wide, write-once backend registry (spec
// §5 "Backend registry: process-wide, write-once at startup"), grounded on
// the teacher's pkg/registry/registry.go — same sync.RWMutex-guarded map
// and alias-resolution pattern, generalized from registering
// provider.Provider instances to registering backend.Connector instances
// and from "provider:model" string parsing to a connector-name lookup plus
// an independent model-alias table.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
)

// Registry resolves connector names and model aliases to backend.Connector
// instances. Registration happens once at startup; after that it is
// read-only, matching spec §5's "write-once" shared-resource note.
type Registry struct {
	mu           sync.RWMutex
	connectors   map[string]backend.Connector
	aliases      map[string]string // alias -> "connector:model"
	capabilities map[string]domain.Capabilities
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		connectors:   make(map[string]backend.Connector),
		aliases:      make(map[string]string),
		capabilities: make(map[string]domain.Capabilities),
	}
}

// Register adds a connector under name. Registering the same name twice
// overwrites the prior entry — callers are expected to call this only
// during startup wiring, never from request-handling code.
func (r *Registry) Register(name string, c backend.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[name] = c
}

// Connector returns the connector registered under name.
func (r *Registry) Connector(name string) (backend.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[name]
	if !ok {
		return nil, &domain.InvalidRequestError{Param: "model", Code: "unknown_backend", Message: fmt.Sprintf("no backend registered for %q", name)}
	}
	return c, nil
}

// RegisterAlias maps alias to a "connector:model" target, e.g.
// RegisterAlias("gpt-4o", "openai:gpt-4o").
func (r *Registry) RegisterAlias(alias, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = target
}

// RegisterCapabilities records the advisory capabilities descriptor for a
// model, consulted only by GET /v1/models (spec §9 Open Question: never on
// the hot generate path).
func (r *Registry) RegisterCapabilities(model string, caps domain.Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[model] = caps
}

// Capabilities returns the advisory descriptor for model, if one was
// registered.
func (r *Registry) Capabilities(model string) (domain.Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.capabilities[model]
	return caps, ok
}

// Resolve maps a model string to its backend connector and the model id to
// send upstream. Accepts either a bare alias ("gpt-4o") or an explicit
// "connector:model" string; an alias is always resolved first.
func (r *Registry) Resolve(model string) (conn backend.Connector, effectiveModel string, err error) {
	r.mu.RLock()
	if target, ok := r.aliases[model]; ok {
		model = target
	}
	connName, modelID, perr := parseModelString(model)
	r.mu.RUnlock()
	if perr != nil {
		return nil, "", perr
	}

	conn, err = r.Connector(connName)
	if err != nil {
		return nil, "", err
	}
	return conn, modelID, nil
}

// ListConnectors returns every registered connector name, sorted.
func (r *Registry) ListConnectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListAliases returns a copy of the alias table.
func (r *Registry) ListAliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// AggregateModels returns every model each registered connector currently
// advertises, prefixed "connector:model", for GET /v1/models (spec §6).
// Uses each connector's cached GetAvailableModels rather than forcing a
// live refresh, matching spec §5's "cached; refreshed on demand; never
// required for liveness."
func (r *Registry) AggregateModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for name, conn := range r.connectors {
		for _, m := range conn.GetAvailableModels() {
			out = append(out, name+":"+m)
		}
	}
	sort.Strings(out)
	return out
}

// parseModelString splits "connector:model" into its two parts.
func parseModelString(model string) (connectorName, modelID string, err error) {
	for i := 0; i < len(model); i++ {
		if model[i] == ':' {
			return model[:i], model[i+1:], nil
		}
	}
	return "", "", &domain.InvalidRequestError{Param: "model", Code: "invalid_model_format", Message: fmt.Sprintf("expected \"connector:model\", got %q", model)}
}
