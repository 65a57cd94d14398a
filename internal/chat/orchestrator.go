package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/soulink/companion-backend/internal/ai"
	"github.com/soulink/companion-backend/internal/companion"
)

// ErrCompanionUnavailable marks a turn against a companion that no longer
// exists (or never did). The transport surfaces it as a terminal not-found
// signal rather than a generic error.
var ErrCompanionUnavailable = errors.New("companion unavailable")

// CompanionResolver re-resolves the companion from storage. The orchestrator
// calls it fresh on every turn so persona edits take effect immediately and
// a deleted companion is detected promptly.
type CompanionResolver interface {
	GetByID(ctx context.Context, id string) (*companion.Companion, error)
}

// Analyzer is the intent classification pass.
type Analyzer interface {
	Analyze(ctx context.Context, userMessage string, recentHistory []string, persona string) IntentResult
}

// Retriever fetches grounding snippets scoped to one companion.
type Retriever interface {
	Retrieve(ctx context.Context, query, companionID string) []string
}

// Orchestrator runs one conversation turn end to end: load memory, classify
// and retrieve concurrently, compose the prompt, persist the user turn,
// stream the reply, persist the assistant turn, update memory. Every
// upstream subsystem carries its own fallback; the only hard failures are
// storage writes and the generation stream itself, and those abort only the
// current turn.
type Orchestrator struct {
	companions CompanionResolver
	repo       *Repo
	memory     *MemoryStore
	classifier Analyzer
	retriever  Retriever
	llm        ai.LLM
	gate       float64
}

func NewOrchestrator(
	companions CompanionResolver,
	repo *Repo,
	memory *MemoryStore,
	classifier Analyzer,
	retriever Retriever,
	llm ai.LLM,
	gate float64,
) *Orchestrator {
	if gate <= 0 || gate > 1 {
		gate = 0.4
	}
	return &Orchestrator{
		companions: companions,
		repo:       repo,
		memory:     memory,
		classifier: classifier,
		retriever:  retriever,
		llm:        llm,
		gate:       gate,
	}
}

// RespondTo processes one inbound message, forwarding reply fragments
// through send as they arrive. On any error the partial reply is discarded
// and nothing past the user turn is persisted; the caller decides how to
// notify the client and the connection stays usable for further turns.
func (o *Orchestrator) RespondTo(ctx context.Context, userID uint64, companionID, text string, send func(fragment string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	comp, err := o.companions.GetByID(ctx, companionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCompanionUnavailable
		}
		return fmt.Errorf("resolve companion: %w", err)
	}

	turns := o.memory.Load(ctx, companionID, userID)

	// Classification and retrieval are independent; both are internally
	// fail-safe, so the group never returns an error.
	var (
		intent   IntentResult
		snippets []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = o.classifier.Analyze(gctx, text, renderHistory(turns), comp.Description)
		return nil
	})
	g.Go(func() error {
		snippets = o.retriever.Retrieve(gctx, text, companionID)
		return nil
	})
	_ = g.Wait()

	system := ComposeSystemPrompt(ComposeInput{
		Instructions: comp.Instructions,
		Seed:         comp.Seed,
		Snippets:     snippets,
		Intent:       intent,
		Gate:         o.gate,
	})

	// The user's input is durable before generation starts: a mid-stream
	// failure never loses it.
	if err := o.repo.InsertMessage(ctx, &Message{
		CompanionID: companionID,
		UserID:      userID,
		Role:        RoleUser,
		Content:     text,
	}); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}

	streamer := NewStreamer(o.llm)
	fragments, errs := streamer.Stream(ctx, system, toAIMessages(turns), text)

	for fragment := range fragments {
		if sendErr := send(fragment); sendErr != nil {
			cancel()
			for range fragments {
			}
			return fmt.Errorf("forward fragment: %w", sendErr)
		}
	}
	if err := <-errs; err != nil {
		// Partial text is deliberately discarded: no record beats a
		// half-finished one stored as if it were complete.
		return fmt.Errorf("generation failed: %w", err)
	}

	reply := streamer.Text()
	if reply == "" {
		// A cleanly-finished stream with no text is a complete turn that
		// simply has nothing to persist or memorize.
		slog.Warn("generation produced an empty reply", "companion_id", companionID, "user_id", userID)
		return nil
	}

	if err := o.repo.InsertMessage(ctx, &Message{
		CompanionID: companionID,
		UserID:      userID,
		Role:        RoleAssistant,
		Content:     reply,
	}); err != nil {
		return fmt.Errorf("persist assistant turn: %w", err)
	}

	updated := append(turns, Turn{Role: RoleUser, Content: text}, Turn{Role: RoleAssistant, Content: reply})
	o.memory.Save(ctx, companionID, userID, updated)

	slog.Debug("turn completed",
		"companion_id", companionID,
		"user_id", userID,
		"grounded", len(snippets) > 0,
		"confidence", intent.Confidence,
	)
	return nil
}

func renderHistory(turns []Turn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s] %s", t.Role, t.Content))
	}
	return lines
}

func toAIMessages(turns []Turn) []ai.Message {
	msgs := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
