package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/soulink/companion-backend/internal/ai"
)

const embedBatchSize = 100

// Upserter is the slice of the vector index ingestion writes to.
type Upserter interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	DeleteByFile(ctx context.Context, fileID string) error
	DeleteByCompanion(ctx context.Context, companionID string) error
}

// Service runs the background ingestion pipeline: load an uploaded document,
// split it, embed the chunks, and upsert them into the vector index with
// companion-scoped metadata.
type Service struct {
	files    *FileRepo
	index    Upserter
	embedder ai.Embedder
}

func NewService(files *FileRepo, index Upserter, embedder ai.Embedder) *Service {
	return &Service{files: files, index: index, embedder: embedder}
}

// IngestFile processes one uploaded file end to end. Any failure marks the
// row FAILED with the error message; success marks it INDEXED. Re-running is
// safe: prior vectors for the file are dropped before the new upsert.
func (s *Service) IngestFile(ctx context.Context, fileID string) error {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load file record: %w", err)
	}

	if err := s.files.SetStatus(ctx, fileID, StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := s.ingest(ctx, f); err != nil {
		msg := err.Error()
		if serr := s.files.SetStatus(ctx, fileID, StatusFailed, &msg); serr != nil {
			slog.Error("mark failed errored", "file_id", fileID, "error", serr)
		}
		return err
	}

	return s.files.SetStatus(ctx, fileID, StatusIndexed, nil)
}

func (s *Service) ingest(ctx context.Context, f *File) error {
	text, err := loadDocument(f.FilePath)
	if err != nil {
		return err
	}

	chunks := SplitText(text, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		return errors.New("document is empty or could not be split into chunks")
	}
	slog.Info("document split", "file_id", f.ID, "chunks", len(chunks))

	// idempotent re-run
	if err := s.index.DeleteByFile(ctx, f.ID); err != nil {
		return fmt.Errorf("clear prior vectors: %w", err)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vectors), len(batch))
		}

		rows := make([]Chunk, len(batch))
		for i, content := range batch {
			rows[i] = Chunk{
				FileID:      f.ID,
				CompanionID: f.CompanionID,
				FileName:    f.FileName,
				Content:     content,
				Embedding:   toVector(vectors[i]),
			}
		}
		if err := s.index.Upsert(ctx, rows); err != nil {
			return err
		}
		slog.Info("chunk batch indexed", "file_id", f.ID, "batch", start/embedBatchSize+1, "size", len(rows))
	}

	return nil
}

// CleanupFile removes a deleted file's vectors from the index.
func (s *Service) CleanupFile(ctx context.Context, fileID string) error {
	return s.index.DeleteByFile(ctx, fileID)
}

// CleanupCompanion removes every vector scoped to a deleted companion.
func (s *Service) CleanupCompanion(ctx context.Context, companionID string) error {
	return s.index.DeleteByCompanion(ctx, companionID)
}

func loadDocument(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found at path %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported file type for ingestion: %s", ext)
	}
}
