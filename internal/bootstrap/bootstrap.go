// Package bootstrap wires an internal/config.Config into a running
// httpapi.Dependencies: constructing every configured backend.Connector,
// the request/response middleware chains, the tool-call reactor, the
// in-band command registry, and the telemetry provider. Grounded on the
// teacher's examples/gin-server/main.go startup sequence (build provider,
// build model, wire into handlers), generalized from one hardcoded OpenAI
// provider to a registry of connectors selected by config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/llmgateway/proxycore/internal/config"
	"github.com/llmgateway/proxycore/internal/httpapi"
	"github.com/llmgateway/proxycore/internal/telemetry"
	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/backend/anthropic"
	"github.com/llmgateway/proxycore/pkg/backend/gemini"
	"github.com/llmgateway/proxycore/pkg/backend/openaicompat"
	"github.com/llmgateway/proxycore/pkg/backend/qwenoauth"
	"github.com/llmgateway/proxycore/pkg/command"
	"github.com/llmgateway/proxycore/pkg/jsonrepair"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/registry"
	"github.com/llmgateway/proxycore/pkg/reqmw"
	"github.com/llmgateway/proxycore/pkg/respmw"
	"github.com/llmgateway/proxycore/pkg/session"
)

// System is everything Build assembles: the ready-to-serve Dependencies
// plus a cleanup func releasing background resources (OAuth file watchers,
// the telemetry exporter).
type System struct {
	Deps    *httpapi.Dependencies
	Cleanup func(context.Context) error
}

// Build constructs every connector named in cfg.Backends, the middleware
// chains, and the telemetry provider, returning a System ready to hand to
// httpapi.NewRouter.
func Build(ctx context.Context, cfg *config.Config) (*System, error) {
	reg := registry.New()
	formats := map[string]httpapi.BackendFormat{}

	for name, b := range cfg.Backends {
		conn, format, err := buildConnector(name, b)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: backend %q: %w", name, err)
		}
		reg.Register(name, conn)
		formats[name] = format
	}
	for alias, target := range cfg.Aliases {
		reg.RegisterAlias(alias, target)
	}

	sessions := session.NewService(session.WithTTL(cfg.Session.IdleTimeout))

	cmdRegistry := command.NewRegistry()
	command.RegisterBuiltins(cmdRegistry, command.Deps{
		IsKnownBackend: func(name string) bool {
			_, err := reg.Connector(name)
			return err == nil
		},
	})

	reqChain := reqmw.NewChain(
		reqmw.NewEditPrecisionTuner(reqmw.DefaultEditPrecisionConfig()),
		reqmw.NewOneoffConsumer(),
		reqmw.NewFailoverExpander(),
		reqmw.NewPlanningRouter(),
	)

	toolReactor := reactor.NewReactor()
	if err := toolReactor.Register(reactor.NewApplyDiffHandler()); err != nil {
		return nil, fmt.Errorf("bootstrap: register apply_diff handler: %w", err)
	}
	toolReactor.OnHandlerError(func(handlerName string, err error) {
		log.Error().Str("handler", handlerName).Err(err).Msg("reactor handler failed")
	})

	respChain := respmw.NewChain(
		respmw.NewToolCallReactorMiddleware(toolReactor),
		respmw.NewDangerousCommandEnforcer(cfg.Reactor.DangerousCommandShellTools, respmw.DefaultDangerousCommandRules()),
		respmw.NewPytestCompressionDetector(cfg.Reactor.PytestShellTools),
		respmw.NewPytestFullSuiteSteering(cfg.Reactor.PytestShellTools, cfg.Reactor.PytestFullSuiteTTL),
		respmw.NewStreamingJSONRepair(64*1024, func(bufferedBytes int) {
			log.Warn().Int("buffered_bytes", bufferedBytes).Msg("streaming json repair buffer overflow")
		}),
		respmw.NewLoopDetector(),
	)

	telemetrySettings := telemetry.DefaultSettings()
	telemetrySettings.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.OTLPEndpoint != "" {
		telemetrySettings.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.ServiceName != "" {
		telemetrySettings.ServiceName = cfg.Telemetry.ServiceName
	}
	telemetrySettings.Insecure = cfg.Telemetry.Insecure

	provider, err := telemetry.NewProvider(ctx, telemetrySettings)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: telemetry: %w", err)
	}

	deps := &httpapi.Dependencies{
		Registry:         reg,
		BackendFormats:   formats,
		Sessions:         sessions,
		Commands:         cmdRegistry,
		Parser:           command.NewParser(""),
		ReqChain:         reqChain,
		RespChain:        respChain,
		Reactor:          toolReactor,
		Tracer:           provider.Tracer(),
		DefaultMaxTokens: 4096,
		CORSAllowOrigins: cfg.Server.CORSAllowOrigins,
	}

	cleanup := func(shutdownCtx context.Context) error {
		for _, name := range reg.ListConnectors() {
			if closer, ok := mustConnector(reg, name).(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					log.Error().Str("backend", name).Err(err).Msg("close backend connector")
				}
			}
		}
		return provider.Shutdown(shutdownCtx)
	}

	return &System{Deps: deps, Cleanup: cleanup}, nil
}

func mustConnector(reg *registry.Registry, name string) backend.Connector {
	conn, err := reg.Connector(name)
	if err != nil {
		return nil
	}
	return conn
}

// buildConnector constructs and initializes the connector named by b.Type,
// returning the wire format the pipeline should use when dispatching to it.
func buildConnector(name string, b config.BackendConfig) (backend.Connector, httpapi.BackendFormat, error) {
	var conn backend.Connector
	var format httpapi.BackendFormat
	params := backend.Params{APIKey: b.APIKey, BaseURL: b.BaseURL}

	switch b.Type {
	case "openai":
		conn = openaicompat.New(openaicompat.Config{Name: name, DefaultBaseURL: "https://api.openai.com/v1", AuthHeader: "Authorization"})
		format = httpapi.FormatOpenAI
	case "openrouter":
		conn = openaicompat.New(openaicompat.Config{Name: name, DefaultBaseURL: "https://openrouter.ai/api/v1", AuthHeader: "Authorization"})
		format = httpapi.FormatOpenAI
	case "zhipuai":
		conn = openaicompat.New(openaicompat.Config{Name: name, DefaultBaseURL: "https://open.bigmodel.cn/api/paas/v4", AuthHeader: "Authorization"})
		format = httpapi.FormatOpenAI
	case "anthropic":
		conn = anthropic.New()
		format = httpapi.FormatAnthropic
	case "gemini-api-key":
		conn = gemini.New(gemini.ModePublicAPIKey)
		format = httpapi.FormatGemini
	case "gemini-oauth":
		conn = gemini.New(gemini.ModeOAuth)
		format = httpapi.FormatGemini
	case "gemini-vertex":
		conn = gemini.New(gemini.ModeVertex)
		format = httpapi.FormatGemini
		params.Extra = map[string]interface{}{"project": b.Project, "location": b.Location}
	case "qwen-oauth":
		conn = qwenoauth.New(qwenoauth.Options{CredentialsPath: b.CredentialsPath, ClientID: b.ClientID, WatchFile: b.WatchFile})
		format = httpapi.FormatOpenAI
	default:
		return nil, "", fmt.Errorf("unknown backend type %q", b.Type)
	}

	if err := conn.Initialize(params); err != nil {
		return nil, "", err
	}
	return conn, format, nil
}
