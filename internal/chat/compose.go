package chat

import (
	"fmt"
	"strings"
)

// ComposeInput is everything the prompt composer needs for one turn.
type ComposeInput struct {
	Instructions string
	Seed         string
	Snippets     []string
	Intent       IntentResult
	Gate         float64
}

// ComposeSystemPrompt deterministically assembles the layered system prompt:
// an optional background-knowledge block (highest precedence), the persona
// block, and a strategy directive derived from the classifier result. Below
// the confidence gate the directive asks for clarification instead of
// embedding the analysis.
func ComposeSystemPrompt(in ComposeInput) string {
	var b strings.Builder

	if len(in.Snippets) > 0 {
		b.WriteString("Answer the user's question based ONLY on the following background knowledge. If the answer is not in the knowledge, say you don't know. Do not fabricate facts outside it.\n")
		b.WriteString("---BACKGROUND KNOWLEDGE---\n")
		b.WriteString(strings.Join(in.Snippets, "\n\n"))
		b.WriteString("\n---END BACKGROUND KNOWLEDGE---\n\n")
		b.WriteString("Your core instructions are:\n")
	}

	b.WriteString(in.Instructions)
	b.WriteString("\nHere is an example of how you should talk:\n")
	b.WriteString(in.Seed)
	b.WriteString("\n\n")

	b.WriteString(strategyDirective(in.Intent, in.Gate))

	return b.String()
}

func strategyDirective(intent IntentResult, gate float64) string {
	if intent.Confidence < gate {
		return "The user's intent is unclear. Before answering, ask a gentle clarifying question to understand what they really need. Stay fully in character while doing so."
	}

	var b strings.Builder
	b.WriteString("A communication analyst has assessed the user's latest message. Use this assessment to address the user's deeper need in the communication style they are most receptive to right now, while staying fully in character.\n")
	fmt.Fprintf(&b, "- Primary intent: %s\n", intent.PrimaryIntent)
	if len(intent.SecondaryIntents) > 0 {
		fmt.Fprintf(&b, "- Secondary intents: %s\n", strings.Join(intent.SecondaryIntents, ", "))
	}
	fmt.Fprintf(&b, "- Emotional state: %s (intensity %d/10)\n", intent.EmotionalState, intent.EmotionalIntensity)
	fmt.Fprintf(&b, "- Underlying need: %s\n", intent.UnderlyingNeed)
	fmt.Fprintf(&b, "- Most receptive to: %s\n", intent.UserReceptivity)
	if intent.PersonaHint != "" {
		fmt.Fprintf(&b, "- Style hint: %s\n", intent.PersonaHint)
	}
	if intent.ReplySeed != "" {
		fmt.Fprintf(&b, "- Suggested opening you may build on: %s\n", intent.ReplySeed)
	}
	return b.String()
}
