package ai

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respWith(msg openai.ChatCompletionMessage) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
	}
}

func TestExtractContentPrefersMessageContent(t *testing.T) {
	got, err := extractContent(respWith(openai.ChatCompletionMessage{
		Content:          "the answer",
		ReasoningContent: "thinking out loud",
	}))
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)
}

func TestExtractContentFallsBackToReasoning(t *testing.T) {
	got, err := extractContent(respWith(openai.ChatCompletionMessage{
		ReasoningContent: "only reasoning came back",
	}))
	require.NoError(t, err)
	assert.Equal(t, "only reasoning came back", got)
}

func TestExtractContentFallsBackToRefusal(t *testing.T) {
	got, err := extractContent(respWith(openai.ChatCompletionMessage{
		Refusal: "I can't help with that.",
	}))
	require.NoError(t, err)
	assert.Equal(t, "I can't help with that.", got)
}

func TestExtractContentEmptyResponse(t *testing.T) {
	_, err := extractContent(openai.ChatCompletionResponse{})
	assert.Error(t, err)

	_, err = extractContent(respWith(openai.ChatCompletionMessage{Content: "   "}))
	assert.Error(t, err)
}
