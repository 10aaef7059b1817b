// Package httpapi is the gin-based HTTP ingress adapter (spec §6): it
// exposes OpenAI, Anthropic, and Gemini compatible endpoints in front of
// one shared request pipeline (ingress -> translate-in -> session lookup
// -> command extraction -> request middleware chain -> connector dispatch
// -> response middleware chain -> translate-out -> egress). Grounded on
// the teacher's examples/gin-server/main.go route and SSE conventions,
// generalized from one backend and one wire format to a registry of
// connectors behind several wire formats.
package httpapi

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/llmgateway/proxycore/pkg/command"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/registry"
	"github.com/llmgateway/proxycore/pkg/reqmw"
	"github.com/llmgateway/proxycore/pkg/respmw"
	"github.com/llmgateway/proxycore/pkg/session"
)

// BackendFormat identifies which wire shape a registered connector speaks
// natively, so the pipeline knows which pkg/translate pair to use when
// dispatching to it, independent of which endpoint the caller used to
// reach the proxy.
type BackendFormat string

const (
	FormatOpenAI    BackendFormat = "openai"
	FormatAnthropic BackendFormat = "anthropic"
	FormatGemini    BackendFormat = "gemini"
)

// Dependencies bundles everything the pipeline and its per-format handlers
// need. It is built once at startup (cmd/proxyd) and passed in, never
// constructed from package-level state (spec's redesign flag: explicit
// registries over globals).
type Dependencies struct {
	Registry        *registry.Registry
	BackendFormats  map[string]BackendFormat
	Sessions        *session.Service
	Commands        *command.Registry
	Parser          *command.Parser
	ReqChain        *reqmw.Chain
	RespChain       *respmw.Chain
	Reactor         *reactor.Reactor
	Tracer          trace.Tracer
	DefaultMaxTokens int
	CORSAllowOrigins []string
}
