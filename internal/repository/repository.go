// Package repository provides typed GORM persistence for duels,
// participants, problems, ratings and history. All duel-state mutation
// goes through Repository.WithDuelLock, which takes a row-level lock
// within a transaction so concurrent writers serialize on the duel row.
package repository

import (
	"gorm.io/gorm"
)

// Repository is the single entry point services use for persistence. It
// is held as an explicit field on each service.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for callers (e.g. the sweeper) that
// need to run their own read-only queries without growing Repository's
// surface for every one-off report.
func (r *Repository) DB() *gorm.DB {
	return r.db
}
