package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeSnapshot is an append-only audit row written on every test/submit
// grade. It is never mutated.
type CodeSnapshot struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DuelRef uuid.UUID `gorm:"type:uuid;not null;index" json:"duel_ref"`
	UserRef uuid.UUID `gorm:"type:uuid;not null;index" json:"user_ref"`

	Code     string `gorm:"type:text;not null" json:"code"`
	Language string `gorm:"size:20;not null" json:"language"`

	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`
	TestsPassed      int       `json:"tests_passed"`
	TestsFailed      int       `json:"tests_failed"`
	ExecutionTimeMs  int64     `json:"execution_time_ms"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
}

func (CodeSnapshot) TableName() string { return "duel_code_snapshots" }
