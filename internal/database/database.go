// Package database wires the GORM connection and schema migration,
// split into Connect and AutoMigrate so cmd/server/main.go can call
// them in sequence at startup.
package database

import (
	"fmt"
	"log"

	"codeduel/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to PostgreSQL.
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// Open wraps an already-constructed *gorm.DB (used by tests, which open
// a SQLite handle via github.com/glebarez/sqlite instead).
func Open(db *gorm.DB) {
	DB = db
}

// AutoMigrate runs automatic migrations for every model the duel
// subsystem owns.
func AutoMigrate() error {
	return AutoMigrateOn(DB)
}

// AutoMigrateOn migrates the given handle, so tests can migrate an
// in-memory SQLite db without touching the package-level DB.
func AutoMigrateOn(db *gorm.DB) error {
	coreModels := []interface{}{
		&models.User{},
		&models.Problem{},
		&models.Duel{},
		&models.Participant{},
		&models.PlayerRating{},
		&models.PlayerAchievement{},
		&models.UserProblemHistory{},
		&models.MatchHistoryEntry{},
		&models.CodeSnapshot{},
	}

	for _, model := range coreModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the package-level database instance.
func GetDB() *gorm.DB {
	return DB
}
