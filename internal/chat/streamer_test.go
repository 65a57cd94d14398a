package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulink/companion-backend/internal/ai"
)

// streamLLM emits the given chunks in order, then the given error (if any).
type streamLLM struct {
	chunks []string
	err    error

	gotMessages []ai.Message
}

func (s *streamLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", errors.New("not used")
}

func (s *streamLLM) ChatStream(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	s.gotMessages = messages
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, c := range s.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return out, errs
}

func TestStreamerAccumulatesWhileForwarding(t *testing.T) {
	llm := &streamLLM{chunks: []string{"Hel", "lo ", "there"}}
	s := NewStreamer(llm)

	fragments, errs := s.Stream(context.Background(), "system", []ai.Message{
		{Role: ai.RoleUser, Content: "earlier"},
	}, "hi")

	var got []string
	for f := range fragments {
		got = append(got, f)
	}
	require.NoError(t, <-errs)

	assert.Equal(t, []string{"Hel", "lo ", "there"}, got)
	assert.Equal(t, "Hello there", s.Text())

	// system prompt first, history in the middle, the new message last
	require.Len(t, llm.gotMessages, 3)
	assert.Equal(t, ai.RoleSystem, llm.gotMessages[0].Role)
	assert.Equal(t, "earlier", llm.gotMessages[1].Content)
	assert.Equal(t, "hi", llm.gotMessages[2].Content)
}

func TestStreamerSurfacesUpstreamError(t *testing.T) {
	llm := &streamLLM{chunks: []string{"partial "}, err: errors.New("stream cut")}
	s := NewStreamer(llm)

	fragments, errs := s.Stream(context.Background(), "system", nil, "hi")

	var got []string
	for f := range fragments {
		got = append(got, f)
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream cut")

	// the partial text is still accessible for the caller to discard
	assert.Equal(t, []string{"partial "}, got)
	assert.Equal(t, "partial ", s.Text())
}
