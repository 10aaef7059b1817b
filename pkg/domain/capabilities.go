package domain

// Capabilities is an advisory, static per-model descriptor. The core request
// pipeline never consults it; it exists so ingress adapters (GET /v1/models)
// can enrich listings for clients. Grounded on original_source's
// model_capabilities.py, simplified to the fields the spec actually names.
type Capabilities struct {
	ContextWindow   int
	MaxOutputTokens int
	SupportsTools   bool
	SupportsImages  bool

	// RateLimits and Pricing are free-form, provider-reported metadata that
	// no part of the pipeline interprets.
	RateLimits map[string]interface{}
	Pricing    map[string]interface{}
}
