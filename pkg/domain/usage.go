package domain

// Usage carries token accounting for a single generation, adapted from the
// teacher's detailed input/output token breakdown so cache and reasoning
// tokens survive translation between providers.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64

	CachedTokens    int64
	ReasoningTokens int64
}

// Add combines two Usage values, returning their element-wise sum.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		CachedTokens:     u.CachedTokens + other.CachedTokens,
		ReasoningTokens:  u.ReasoningTokens + other.ReasoningTokens,
	}
}
