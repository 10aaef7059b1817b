package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmgateway/proxycore/internal/telemetry"
)

// NewRouter builds the proxy's HTTP handler: a gin engine with every
// external interface from spec §6 registered, wrapped in CORS middleware.
// Grounded on the teacher's examples/gin-server/main.go route layout
// (gin.SetMode(gin.ReleaseMode), gin.New() + Logger/Recovery, explicit
// route registration), with the teacher's hand-rolled CORS middleware
// superseded by go-chi/cors per this proxy's domain stack.
func NewRouter(deps *Dependencies, requestTimeout time.Duration) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestTimeoutMiddleware(requestTimeout))
	engine.Use(tracingMiddleware(deps.Tracer))

	engine.POST("/v1/chat/completions", deps.HandleChatCompletions)
	engine.POST("/v1/messages", deps.HandleMessages)
	engine.POST("/v1/responses", deps.HandleResponses)
	engine.POST("/v1beta/models/:modelAction", deps.HandleModelAction)
	engine.GET("/v1/models", deps.HandleListModels)
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return corsMW(engine)
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

func requestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// tracingMiddleware wraps every request in a span named "httpapi." plus the
// matched route path (gin's FullPath), matching spec §4's "spans around middleware/connector dispatch"
// without requiring every handler to start its own request-level span.
func tracingMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "httpapi."+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if len(c.Errors) > 0 {
			telemetry.RecordError(span, c.Errors.Last())
		}
	}
}
