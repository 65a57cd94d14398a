package knowledge

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Index is the pgvector-backed vector store. Chunks for every companion live
// in one table; queries always filter on companion_id.
type Index struct {
	db *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

func (i *Index) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := i.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// Search returns the topK chunk contents closest to the query vector by
// cosine distance, restricted to one companion's chunks.
func (i *Index) Search(ctx context.Context, vector []float32, companionID string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	var contents []string
	err := i.db.WithContext(ctx).
		Raw(`SELECT content FROM knowledge_chunks
		     WHERE companion_id = ?
		     ORDER BY embedding <=> ?
		     LIMIT ?`,
			companionID, pgvector.NewVector(vector), topK).
		Scan(&contents).Error
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return contents, nil
}

func (i *Index) DeleteByFile(ctx context.Context, fileID string) error {
	return i.db.WithContext(ctx).Delete(&Chunk{}, "file_id = ?", fileID).Error
}

func (i *Index) DeleteByCompanion(ctx context.Context, companionID string) error {
	return i.db.WithContext(ctx).Delete(&Chunk{}, "companion_id = ?", companionID).Error
}
