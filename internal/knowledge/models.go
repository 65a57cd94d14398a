package knowledge

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// File processing statuses. Transitions are monotonic:
// UPLOADED -> PROCESSING -> INDEXED | FAILED.
const (
	StatusUploaded   = "UPLOADED"
	StatusProcessing = "PROCESSING"
	StatusIndexed    = "INDEXED"
	StatusFailed     = "FAILED"
)

// Knowledge-base statuses derived from a companion's file statuses.
const (
	BaseEmpty      = "EMPTY"
	BaseProcessing = "PROCESSING"
	BaseReady      = "READY"
	BaseFailed     = "FAILED"
)

// File is one uploaded document belonging to a companion.
type File struct {
	ID           string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	CompanionID  string    `gorm:"type:uuid;index;not null" json:"companion_id"`
	FileName     string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FilePath     string    `gorm:"type:varchar(1024);not null" json:"-"`
	Status       string    `gorm:"type:varchar(16);not null" json:"status"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (File) TableName() string { return "knowledge_files" }

// Chunk is one embedded slice of a file, stored in the pgvector index.
// CompanionID is denormalized onto every chunk: retrieval filters on it so
// one companion's answers are never grounded in another's documents.
type Chunk struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	FileID      string          `gorm:"size:26;index;not null"`
	CompanionID string          `gorm:"type:uuid;index;not null"`
	FileName    string          `gorm:"type:varchar(255);not null"`
	Content     string          `gorm:"type:text;not null"`
	Embedding   pgvector.Vector `gorm:"type:vector(1024)"`
}

func (Chunk) TableName() string { return "knowledge_chunks" }

func toVector(v []float32) pgvector.Vector { return pgvector.NewVector(v) }

// AggregateStatus derives the companion-level knowledge-base status from its
// file statuses.
func AggregateStatus(files []File) string {
	if len(files) == 0 {
		return BaseEmpty
	}
	failed := false
	for _, f := range files {
		switch f.Status {
		case StatusUploaded, StatusProcessing:
			return BaseProcessing
		case StatusFailed:
			failed = true
		}
	}
	if failed {
		return BaseFailed
	}
	return BaseReady
}
