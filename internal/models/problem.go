package models

import (
	"time"

	"github.com/google/uuid"
)

// TestCase is one input/expected-output pair for a Problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
	Category       string `json:"category,omitempty"` // normal, empty, single, large, edge
}

// Problem is a validated, reusable coding challenge.
type Problem struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string      `gorm:"size:200;not null" json:"title"`
	Description string      `gorm:"type:text;not null" json:"description"`
	Difficulty  Difficulty  `gorm:"size:10;not null;index" json:"difficulty"`
	ProblemType ProblemType `gorm:"size:30;not null;index" json:"problem_type"`
	Fingerprint string      `gorm:"size:32;not null;uniqueIndex" json:"fingerprint"`

	FunctionName string `gorm:"size:100;not null" json:"function_name"`

	StarterCode        JSONMap    `gorm:"type:text;serializer:json" json:"starter_code"`
	TestCases           []TestCase `gorm:"type:text;serializer:json" json:"test_cases"`
	Constraints         string     `gorm:"type:text" json:"constraints"`
	Hints               []string   `gorm:"type:text;serializer:json" json:"hints"`
	ReferenceSolution   JSONMap    `gorm:"type:text;serializer:json" json:"reference_solution,omitempty"`
	SetSemantics        bool       `gorm:"not null;default:false" json:"set_semantics"`

	TimesUsed  int        `gorm:"not null;default:0" json:"times_used"`
	LastUsedAt *time.Time `gorm:"index" json:"last_used_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Problem) TableName() string { return "duel_problems" }

// JSONMap is a generic string-keyed map stored as a JSON column. GORM's
// serializer:json tag on the Problem fields (de)serializes it
// transparently; this avoids a dependency on datatypes.JSON since the
// target dialects here include SQLite in tests.
type JSONMap map[string]string

// VisibleTestCases returns only the non-hidden cases (for TestCode, §4.1).
func (p *Problem) VisibleTestCases() []TestCase {
	var out []TestCase
	for _, tc := range p.TestCases {
		if !tc.Hidden {
			out = append(out, tc)
		}
	}
	return out
}
