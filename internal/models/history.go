package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProblemHistory records one user's exposure to one problem within one
// duel; the anti-duplicate index (internal/antidupe) reads this to avoid
// re-serving a fingerprint within the TTL window.
type UserProblemHistory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserRef     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_history_unique" json:"user_ref"`
	ProblemRef  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_history_unique" json:"problem_ref"`
	DuelRef     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_history_unique" json:"duel_ref"`
	Fingerprint string    `gorm:"size:32;not null;index" json:"fingerprint"`

	UsedAt                time.Time `gorm:"not null;index" json:"used_at"`
	Solved                bool      `gorm:"not null;default:false" json:"solved"`
	TestsPassed           int       `json:"tests_passed"`
	TotalTests            int       `json:"total_tests"`
	SolveDurationSeconds  *int      `json:"solve_duration_seconds"`
	ReportedAsDuplicate   bool      `gorm:"not null;default:false" json:"reported_as_duplicate"`
}

func (UserProblemHistory) TableName() string { return "user_problem_history" }

// MatchHistoryEntry is a denormalized row written on duel completion,
// read back by GET /duels/history.
type MatchHistoryEntry struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DuelRef      uuid.UUID  `gorm:"type:uuid;not null;index" json:"duel_ref"`
	UserRef      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_ref"`
	OpponentName string     `gorm:"size:64" json:"opponent_name"`
	Won          bool       `json:"won"`
	RatingDelta  int        `json:"rating_delta"`
	SolveSeconds *int       `json:"solve_seconds"`
	PlayedAt     time.Time  `gorm:"not null;index" json:"played_at"`
}

func (MatchHistoryEntry) TableName() string { return "match_history" }
