package knowledge

import (
	"context"
	"log/slog"

	"github.com/soulink/companion-backend/internal/ai"
)

// Searcher is the slice of the vector index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, companionID string, topK int) ([]string, error)
}

// Retriever turns a chat query into grounding snippets from one companion's
// indexed documents. It never fails: an unreachable index or embedding error
// degrades to an empty result and the conversation proceeds ungrounded.
type Retriever struct {
	embedder ai.Embedder
	index    Searcher
	topK     int
}

func NewRetriever(embedder ai.Embedder, index Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query, companionID string) []string {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("retrieval: query embedding failed", "companion_id", companionID, "error", err)
		return nil
	}

	snippets, err := r.index.Search(ctx, vector, companionID, r.topK)
	if err != nil {
		slog.Warn("retrieval: vector search failed", "companion_id", companionID, "error", err)
		return nil
	}

	slog.Debug("retrieval done", "companion_id", companionID, "snippets", len(snippets))
	return snippets
}
