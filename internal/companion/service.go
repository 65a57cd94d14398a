package companion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("companion not found")
	ErrForbidden = errors.New("companion belongs to another user")
)

// VectorIndex is the slice of the knowledge index the companion lifecycle
// needs: purging every vector scoped to a companion. Must be idempotent.
type VectorIndex interface {
	DeleteByCompanion(ctx context.Context, companionID string) error
}

// MemoryStore deletes a (companion, user) session memory blob.
type MemoryStore interface {
	Delete(ctx context.Context, companionID string, userID uint64) error
}

type Service struct {
	repo    *Repo
	vectors VectorIndex
	memory  MemoryStore
}

func NewService(repo *Repo, vectors VectorIndex, memory MemoryStore) *Service {
	return &Service{repo: repo, vectors: vectors, memory: memory}
}

type CreateInput struct {
	Name         string
	Description  string
	Instructions string
	Seed         string
	AvatarURL    string
}

func (s *Service) Create(ctx context.Context, ownerID uint64, in CreateInput) (*Companion, error) {
	c := &Companion{
		OwnerID:      ownerID,
		Name:         in.Name,
		Description:  in.Description,
		Instructions: in.Instructions,
		Seed:         in.Seed,
		AvatarURL:    in.AvatarURL,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, ownerID uint64, id string) (*Companion, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, ownerID uint64, offset, limit int) ([]Companion, error) {
	return s.repo.ListByOwner(ctx, ownerID, offset, limit)
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name         *string
	Description  *string
	Instructions *string
	Seed         *string
	AvatarURL    *string
}

func (s *Service) Update(ctx context.Context, ownerID uint64, id string, in UpdateInput) (*Companion, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Instructions != nil {
		fields["instructions"] = *in.Instructions
	}
	if in.Seed != nil {
		fields["seed"] = *in.Seed
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = *in.AvatarURL
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a companion and everything scoped to it. Cleanup order:
// vectors, then session memory, then the relational rows. The relational row
// is deleted last so a failed run can simply be retried; every step is
// idempotent against already-removed state.
func (s *Service) Delete(ctx context.Context, ownerID uint64, id string) error {
	c, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteByCompanion(ctx, id); err != nil {
		return err
	}

	if err := s.memory.Delete(ctx, id, ownerID); err != nil {
		slog.Warn("companion delete: memory cleanup failed", "companion_id", id, "error", err)
	}

	filePaths, err := s.repo.KnowledgeFilePaths(ctx, id)
	if err != nil {
		slog.Warn("companion delete: listing file paths failed", "companion_id", id, "error", err)
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return err
	}

	for _, p := range filePaths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(filepath.Dir(p)); err != nil {
			slog.Warn("companion delete: removing upload failed", "path", p, "error", err)
		}
	}

	slog.Info("companion deleted", "companion_id", id, "name", c.Name, "owner_id", ownerID)
	return nil
}
