package chat

import (
	"context"
	"strings"

	"github.com/soulink/companion-backend/internal/ai"
)

// Streamer drives one streaming completion and accumulates the full reply as
// fragments pass through, so the caller can persist the complete turn
// without re-concatenating at the transport boundary. One Streamer serves
// one turn; it is not restartable.
type Streamer struct {
	llm ai.LLM
	buf strings.Builder
}

func NewStreamer(llm ai.LLM) *Streamer {
	return &Streamer{llm: llm}
}

// Stream starts the completion. The returned fragment channel closes at the
// natural end of the reply; an upstream failure terminates it early and
// surfaces on the error channel.
func (s *Streamer) Stream(ctx context.Context, system string, history []ai.Message, userMessage string) (<-chan string, <-chan error) {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: userMessage})

	out := make(chan string, 16)
	errs := make(chan error, 1)

	chunks, upstreamErrs := s.llm.ChatStream(ctx, messages)

	go func() {
		defer close(out)
		defer close(errs)

		for chunk := range chunks {
			s.buf.WriteString(chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := <-upstreamErrs; err != nil {
			errs <- err
		}
	}()

	return out, errs
}

// Text returns the accumulated reply. Only meaningful after the fragment
// channel has closed.
func (s *Streamer) Text() string {
	return s.buf.String()
}
