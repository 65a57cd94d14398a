package companion

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, c *Companion) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Companion, error) {
	var c Companion
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListByOwner(ctx context.Context, ownerID uint64, offset, limit int) ([]Companion, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var list []Companion
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repo) Update(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&Companion{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// KnowledgeFilePaths returns the storage paths of the companion's uploaded
// files, captured before DeleteCascade removes their rows.
func (r *Repo) KnowledgeFilePaths(ctx context.Context, companionID string) ([]string, error) {
	var paths []string
	if err := r.db.WithContext(ctx).
		Table("knowledge_files").
		Where("companion_id = ?", companionID).
		Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// DeleteCascade removes the companion and its messages and knowledge file
// rows in one transaction. The companion row goes last: it is the
// authoritative existence check, so a crash mid-sequence leaves a state a
// re-run cleans up. Vector and cache cleanup happen before this is called.
func (r *Repo) DeleteCascade(ctx context.Context, companionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM messages WHERE companion_id = ?", companionID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM knowledge_files WHERE companion_id = ?", companionID).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM companions WHERE id = ?", companionID).Error
	})
}
