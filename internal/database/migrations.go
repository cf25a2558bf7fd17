package database

import (
	"log"
	"log/slog"

	"c5chat-backend/internal/database/versions/migration_0"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:       "0",
			Migrate:  migration_0.Migration,
			Rollback: migration_0.Rollback,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// This is run by the migrator if no previous migration is detected. It
		// allows it to bypass running all the migrations sequentially and just create
		// the latest database state.

		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&ChatSession{}, &ChatMessage{})
	})

	return migrator
}

// EnableForeignKeys turns on foreign key enforcement for SQLite connections.
// Sqlite does not enable foreign key constraints by default, so cascading
// deletes and the session reference check on message inserts need them
// enabled manually.
func EnableForeignKeys(db *gorm.DB) {
	dbType := db.Dialector.Name()
	if dbType == "sqlite" || dbType == "sqlite3" {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			slog.Error("error enabling foreign keys for SQLite", "error", err)
		}
	}
}
