package chat

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

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListAscending returns history in replay order (oldest -> newest) with
// offset/limit pagination.
func (r *Repo) ListAscending(ctx context.Context, companionID string, userID uint64, offset, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("companion_id = ? AND user_id = ?", companionID, userID).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentDesc returns the most recent messages newest-first.
func (r *Repo) ListRecentDesc(ctx context.Context, companionID string, userID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 30
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("companion_id = ? AND user_id = ?", companionID, userID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
