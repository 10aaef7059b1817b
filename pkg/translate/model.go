package translate

import "strings"

// stripModelPrefix removes the first matching prefix from model, if any.
func stripModelPrefix(model string, prefixes ...string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(model, p) {
			return model[len(p):]
		}
	}
	return model
}

// normalizeGeminiModel implements spec §4.3's model-id normalization:
// strip leading "gemini:", "models/", "gemini/" prefixes, then if any "/"
// remains keep only the trailing segment.
func normalizeGeminiModel(model string) string {
	model = stripModelPrefix(model, "gemini:", "models/", "gemini/")
	if idx := strings.LastIndexByte(model, '/'); idx >= 0 {
		model = model[idx+1:]
	}
	return model
}
