package knowledge

import (
	"context"

	"gorm.io/gorm"
)

type FileRepo struct {
	db *gorm.DB
}

func NewFileRepo(db *gorm.DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, f *File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *FileRepo) GetByID(ctx context.Context, id string) (*File, error) {
	var f File
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FileRepo) ListByCompanion(ctx context.Context, companionID string) ([]File, error) {
	var files []File
	if err := r.db.WithContext(ctx).
		Where("companion_id = ?", companionID).
		Order("created_at ASC").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// SetStatus updates a file's processing status. errMsg is cleared on nil.
func (r *FileRepo) SetStatus(ctx context.Context, id, status string, errMsg *string) error {
	return r.db.WithContext(ctx).Model(&File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": errMsg,
		}).Error
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&File{}, "id = ?", id).Error
}
