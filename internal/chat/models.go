package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted conversation turn. Rows are immutable; ordering
// is by insertion id, which follows creation time.
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanionID string    `gorm:"type:uuid;not null;index:idx_msg_companion_user,priority:1" json:"companion_id"`
	UserID      uint64    `gorm:"not null;index:idx_msg_companion_user,priority:2" json:"-"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }
