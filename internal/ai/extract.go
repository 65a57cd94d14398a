package ai

import (
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// extractContent pulls the assistant text out of a completion response.
// Some OpenAI-compatible providers populate unexpected fields or return
// empty choices; extraction strategies are tried in a fixed order and the
// first non-empty string wins.
func extractContent(resp openai.ChatCompletionResponse) (string, error) {
	for _, choice := range resp.Choices {
		if s := strings.TrimSpace(choice.Message.Content); s != "" {
			return choice.Message.Content, nil
		}
		if s := strings.TrimSpace(choice.Message.ReasoningContent); s != "" {
			return choice.Message.ReasoningContent, nil
		}
		if s := strings.TrimSpace(choice.Message.Refusal); s != "" {
			return choice.Message.Refusal, nil
		}
	}
	return "", errors.New("completion response carried no content")
}
