package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Nil(t, SplitText("", DefaultChunkSize, DefaultChunkOverlap))
	assert.Nil(t, SplitText("   \n\n  ", DefaultChunkSize, DefaultChunkOverlap))
}

func TestSplitTextShortInputIsOneChunk(t *testing.T) {
	chunks := SplitText("just a short note", DefaultChunkSize, DefaultChunkOverlap)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just a short note", chunks[0])
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("some reasonably sized sentence about nothing in particular. ")
	}

	chunks := SplitText(b.String(), 500, 100)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 500)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitTextPrefersParagraphBoundaries(t *testing.T) {
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird paragraph here."
	chunks := SplitText(text, 30, 0)

	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Contains(t, chunks[0], "first paragraph")
}

func TestSplitTextAdjacentChunksOverlap(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := SplitText(text, 200, 50)
	require.Greater(t, len(chunks), 1)

	// the tail of each chunk reappears at the head of the next
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-10:]
		assert.Contains(t, chunks[i][:min(len(chunks[i]), 80)], strings.TrimSpace(prevTail))
	}
}

func TestSplitTextHandlesUnbrokenRuns(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := SplitText(text, 1000, 0)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
	}
}

func TestSplitTextRuneSafe(t *testing.T) {
	text := strings.Repeat("你好世界 ", 500)
	chunks := SplitText(text, 100, 20)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c, "你") || strings.HasPrefix(c, "好") ||
			strings.HasPrefix(c, "世") || strings.HasPrefix(c, "界"))
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}

func TestSplitTextBoundHoldsWithLargePieces(t *testing.T) {
	// paragraphs just under the chunk size leave no room for the overlap
	// carry; the bound must hold anyway
	para := strings.TrimSpace(strings.Repeat("dense paragraph text ", 48))[:950]
	text := para + "\n\n" + para + "\n\n" + para

	chunks := SplitText(text, 1000, 200)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqualf(t, len([]rune(c)), 1000, "chunk %d exceeds the chunk size", i)
	}
}

func TestSplitTextBadParamsFallBackToDefaults(t *testing.T) {
	chunks := SplitText("hello world", 0, -5)
	require.Len(t, chunks, 1)
}
