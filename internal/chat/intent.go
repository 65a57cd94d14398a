package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soulink/companion-backend/internal/ai"
)

// Bounded field lengths for classifier output. Overlong model output is
// truncated, never rejected.
const (
	maxShortExplanation = 60
	maxUnderlyingNeed   = 100
	maxPersonaHint      = 120
	maxReplySeed        = 120
)

var knownIntents = map[string]bool{
	"information_seeking":  true,
	"problem_solving":      true,
	"emotional_expression": true,
	"casual_chat":          true,
	"suggestion_seeking":   true,
}

var knownEmotions = map[string]bool{
	"joyful":    true,
	"sad":       true,
	"anxious":   true,
	"angry":     true,
	"surprised": true,
	"neutral":   true,
}

var knownReceptivities = map[string]bool{
	"needs_validation_and_comfort":       true,
	"seeks_logical_and_calm_explanation": true,
	"open_to_humor_and_lightheartedness": true,
	"desires_shared_joy_and_excitement":  true,
}

// IntentResult is the classifier's structured read of one user message.
// Confidence below the configured gate tells the composer to ask for
// clarification instead of answering directly.
type IntentResult struct {
	PrimaryIntent      string   `json:"primary_intent"`
	SecondaryIntents   []string `json:"secondary_intents"`
	EmotionalState     string   `json:"emotional_state"`
	EmotionalIntensity int      `json:"emotional_intensity"`
	UnderlyingNeed     string   `json:"underlying_need"`
	UserReceptivity    string   `json:"user_receptivity"`
	Confidence         float64  `json:"confidence"`
	ShortExplanation   string   `json:"short_explanation,omitempty"`
	PersonaHint        string   `json:"persona_hint,omitempty"`
	ReplySeed          string   `json:"reply_seed,omitempty"`
}

const classifierSystemPrompt = `You are a top-tier psychologist and communication analyst. Your client is an AI companion with a distinct persona: %s.
Task: read the role-tagged chat history and produce a structured intelligence report on the latest user message. Output ONLY a JSON object with these fields, no explanation outside it:
primary_intent (one of: information_seeking, problem_solving, emotional_expression, casual_chat, suggestion_seeking),
secondary_intents (list of the same values),
emotional_state (one of: joyful, sad, anxious, angry, surprised, neutral),
emotional_intensity (integer 1-10),
underlying_need (short string),
user_receptivity (one of: needs_validation_and_comfort, seeks_logical_and_calm_explanation, open_to_humor_and_lightheartedness, desires_shared_joy_and_excitement),
confidence (float 0-1),
short_explanation (short string),
persona_hint (short string),
reply_seed (short string).

--- FEW-SHOT EXAMPLE ---
INPUT:
- CHAT HISTORY: [user] I have a job interview tomorrow and I'm so nervous...
- LATEST MESSAGE: What if I mess it up and they reject me?
- AI PARTNER PERSONA: a gentle, encouraging older sister

OUTPUT (this is the format you MUST follow):
{
    "primary_intent": "emotional_expression",
    "secondary_intents": ["suggestion_seeking"],
    "emotional_state": "anxious",
    "emotional_intensity": 8,
    "underlying_need": "seeks_reassurance_and_confidence_boost",
    "user_receptivity": "needs_validation_and_comfort",
    "confidence": 0.9,
    "short_explanation": "Strong interview anxiety; wants support and advice.",
    "persona_hint": "Empathize with the anxiety first, then gently build her confidence, then offer one or two small tips.",
    "reply_seed": "It's completely normal to feel nervous - it means you really care about this."
}
--- END OF EXAMPLE ---`

// Classifier runs the intent/emotion analysis pass. Analyze never fails: any
// error inside the call collapses to a safe neutral result with confidence
// 0.0 so the conversation pipeline keeps moving.
type Classifier struct {
	llm ai.LLM
}

func NewClassifier(llm ai.LLM) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Analyze(ctx context.Context, userMessage string, recentHistory []string, persona string) IntentResult {
	history := recentHistory
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	formatted := strings.Join(history, "\n")
	if formatted == "" {
		formatted = "no prior history"
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: fmt.Sprintf(classifierSystemPrompt, persona)},
		{Role: ai.RoleUser, Content: fmt.Sprintf("Now, analyze the following real request:\nCHAT HISTORY:\n%s\n\nLATEST MESSAGE:\n%s", formatted, userMessage)},
	}

	raw, err := c.llm.Chat(ctx, messages)
	if err != nil {
		slog.Error("intent analysis call failed", "error", err)
		return fallbackResult(err)
	}

	parsed := safeLoadJSON(raw)
	if parsed == nil {
		slog.Warn("intent analysis output was not JSON, using raw text as explanation")
		parsed = map[string]any{"short_explanation": truncate(raw, maxShortExplanation)}
	}

	result := normalizeAnalysis(parsed)
	slog.Debug("intent analysis done",
		"intent", result.PrimaryIntent,
		"emotion", result.EmotionalState,
		"confidence", result.Confidence,
	)
	return result
}

// safeLoadJSON extracts a JSON object from raw model output. It first tries
// the substring between the first '{' and the last '}', then the whole text.
func safeLoadJSON(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err == nil {
			return obj
		}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj
	}
	return nil
}

// normalizeAnalysis fills defaults, clamps ranges, truncates overlong text
// and coerces scalars to lists, so the result is always schema-valid.
func normalizeAnalysis(raw map[string]any) IntentResult {
	res := IntentResult{
		PrimaryIntent:    asEnum(raw["primary_intent"], knownIntents, "casual_chat"),
		SecondaryIntents: asEnumList(raw["secondary_intents"], knownIntents),
		EmotionalState:   asEnum(raw["emotional_state"], knownEmotions, "neutral"),
		UserReceptivity:  asEnum(raw["user_receptivity"], knownReceptivities, "needs_validation_and_comfort"),
	}

	res.EmotionalIntensity = clampInt(asInt(raw["emotional_intensity"], 3), 1, 10)
	res.Confidence = clampFloat(asFloat(raw["confidence"], 0.5), 0, 1)

	need := asString(raw["underlying_need"])
	if need == "" {
		need = asString(raw["underlyingNeed"])
	}
	if need == "" {
		need = "unknown"
	}
	res.UnderlyingNeed = truncate(need, maxUnderlyingNeed)

	explanation := asString(raw["short_explanation"])
	if explanation == "" {
		explanation = asString(raw["explanation"])
	}
	res.ShortExplanation = truncateEllipsis(stripTraceback(explanation), maxShortExplanation)

	res.PersonaHint = truncate(asString(raw["persona_hint"]), maxPersonaHint)
	res.ReplySeed = truncate(asString(raw["reply_seed"]), maxReplySeed)

	return res
}

func fallbackResult(err error) IntentResult {
	short := truncateEllipsis("analyzer service failed: "+err.Error(), maxShortExplanation)
	return IntentResult{
		PrimaryIntent:      "casual_chat",
		SecondaryIntents:   []string{},
		EmotionalState:     "neutral",
		EmotionalIntensity: 3,
		UnderlyingNeed:     "unknown, analysis failed",
		UserReceptivity:    "seeks_logical_and_calm_explanation",
		Confidence:         0.0,
		ShortExplanation:   short,
		PersonaHint:        "Respond in the safest, most generic way possible.",
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func asEnum(v any, allowed map[string]bool, def string) string {
	s := asString(v)
	if allowed[s] {
		return s
	}
	return def
}

func asEnumList(v any, allowed map[string]bool) []string {
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case nil:
		return []string{}
	default:
		items = []any{v} // scalar coerced to a one-element list
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); allowed[s] {
			out = append(out, s)
		}
	}
	return out
}

func asInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		var i int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &i); err == nil {
			return i
		}
	}
	return def
}

func asFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f
		}
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// truncateEllipsis truncates and marks the cut, keeping the result within max.
func truncateEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}

// stripTraceback drops anything that looks like a stack trace so error
// plumbing never leaks into prompt text.
func stripTraceback(s string) string {
	if idx := strings.Index(strings.ToLower(s), "traceback"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
