// Package testutil provides an in-memory SQLite-backed repository for
// package tests (glebarez/sqlite + gorm.io/gorm, schema migrated once
// per test).
package testutil

import (
	"testing"

	"codeduel/internal/database"
	"codeduel/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewRepository opens a fresh in-memory SQLite database, migrates the
// full schema onto it, and returns a ready-to-use Repository.
func NewRepository(t *testing.T) *repository.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}

	if err := database.AutoMigrateOn(db); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	return repository.New(db)
}
