package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/soulink/companion-backend/internal/chat"
	"github.com/soulink/companion-backend/internal/companion"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	// pgvector extension must exist before the chunk table's vector column migrates.
	if err := gdb.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Fatalf("create vector extension: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&companion.Companion{},
		&chat.Message{},
		&knowledge.File{},
		&knowledge.Chunk{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}
	return gdb
}
