package reqmw

import (
	"context"
	"regexp"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// EditPrecisionPriority runs first among request middlewares: it inspects
// the request as the caller sent it, before oneoff/failover/planning
// rewrite the model.
const EditPrecisionPriority = 100

var defaultFailedEditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SEARCH/REPLACE block.*not found`),
	regexp.MustCompile(`(?i)multiple matches`),
	regexp.MustCompile(`(?i)unable to apply (edit|diff|patch)`),
	regexp.MustCompile(`(?i)hunk.*fail(ed|s) to apply`),
}

// EditPrecisionConfig drives EditPrecisionTuner's per-model temperature
// targets (spec §4.4: "derive a per-model target temperature from a
// configuration table (default 0.1)").
type EditPrecisionConfig struct {
	Patterns                 []*regexp.Regexp
	TargetTemperatureByModel map[string]float64
	DefaultTargetTemperature float64
	TopPFloor                float64
}

// DefaultEditPrecisionConfig returns the built-in pattern set and defaults.
func DefaultEditPrecisionConfig() EditPrecisionConfig {
	return EditPrecisionConfig{
		Patterns:                 defaultFailedEditPatterns,
		TargetTemperatureByModel: map[string]float64{},
		DefaultTargetTemperature: 0.1,
		TopPFloor:                0.3,
	}
}

// EditPrecisionTuner lowers temperature/top_p toward a precise-edit target
// when the conversation shows signs of a failed file-edit attempt. It is
// one-shot: nothing in session state is changed, so the next turn starts
// fresh (spec §4.4: "One-shot; not sticky").
type EditPrecisionTuner struct {
	cfg EditPrecisionConfig
}

// NewEditPrecisionTuner builds a tuner from cfg.
func NewEditPrecisionTuner(cfg EditPrecisionConfig) *EditPrecisionTuner {
	return &EditPrecisionTuner{cfg: cfg}
}

func (t *EditPrecisionTuner) Name() string     { return "edit_precision_tuner" }
func (t *EditPrecisionTuner) Priority() int    { return EditPrecisionPriority }

func (t *EditPrecisionTuner) Apply(_ context.Context, _ Context, req *domain.ChatRequest, state session.State) (*domain.ChatRequest, session.State) {
	if !t.detected(req.Messages) {
		return req, state
	}

	target := t.cfg.DefaultTargetTemperature
	if v, ok := t.cfg.TargetTemperatureByModel[req.Model]; ok {
		target = v
	}

	out := req.CloneShallow()

	origTemp := out.Temperature
	origTopP := out.TopP

	newTemp := target
	if origTemp != nil {
		newTemp = *origTemp
		if newTemp == 0 {
			// Clamp 0.0 up to target to break determinism on retry.
			newTemp = target
		} else if newTemp > target {
			newTemp = target
		}
	}
	out.Temperature = &newTemp

	floor := t.cfg.TopPFloor
	newTopP := floor
	if origTopP != nil && *origTopP < floor {
		newTopP = *origTopP
	}
	out.TopP = &newTopP

	out.SetInternalExtra("edit_precision_meta", map[string]interface{}{
		"original_temperature": origTemp,
		"original_top_p":       origTopP,
	})
	out.SetInternalExtra("edit_precision_mode", true)

	return out, state
}

// detected scans the last user text first, then every message's text, for
// a configured failed-edit pattern (spec §4.4).
func (t *EditPrecisionTuner) detected(messages []domain.ChatMessage) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		if t.matchesAny(messages[i].ContentText()) {
			return true
		}
		break
	}
	for _, m := range messages {
		if t.matchesAny(m.ContentText()) {
			return true
		}
	}
	return false
}

func (t *EditPrecisionTuner) matchesAny(text string) bool {
	for _, p := range t.cfg.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
