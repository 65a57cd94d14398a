package companion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Companion is an AI persona owned by one user. Instructions is the free-text
// system-prompt body; Seed is a short example dialogue showing the voice.
type Companion struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uint64    `gorm:"index;not null" json:"-"`
	Name         string    `gorm:"type:varchar(100);not null;index" json:"name"`
	Description  string    `gorm:"type:varchar(500);not null" json:"description"`
	Instructions string    `gorm:"type:text;not null" json:"instructions"`
	Seed         string    `gorm:"type:text;not null" json:"seed"`
	AvatarURL    string    `gorm:"type:varchar(512)" json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Companion) TableName() string { return "companions" }

func (c *Companion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
