package models

import (
	"time"

	"github.com/google/uuid"
)

// DuelMode selects how a duel finds its second participant.
type DuelMode string

const (
	ModeRandomPlayer DuelMode = "RANDOM_PLAYER"
	ModeAIOpponent   DuelMode = "AI_OPPONENT"
	ModePrivateRoom  DuelMode = "PRIVATE_ROOM"
)

// DuelStatus is the duel's position in the lifecycle state machine.
// Waiting and InProgress are the only non-terminal states.
type DuelStatus string

const (
	StatusWaiting    DuelStatus = "WAITING"
	StatusInProgress DuelStatus = "IN_PROGRESS"
	StatusCompleted  DuelStatus = "COMPLETED"
	StatusCancelled  DuelStatus = "CANCELLED"
	StatusTimedOut   DuelStatus = "TIMED_OUT"
)

// IsTerminal reports whether no outbound transition exists from this status.
func (s DuelStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

type ProblemType string

const (
	TypeAlgorithm  ProblemType = "ALGORITHM"
	TypeDataStruct ProblemType = "DATA_STRUCTURE"
	TypeDP         ProblemType = "DYNAMIC_PROGRAMMING"
	TypeGraph      ProblemType = "GRAPH"
	TypeString     ProblemType = "STRING"
	TypeArray      ProblemType = "ARRAY"
	TypeTree       ProblemType = "TREE"
	TypeMath       ProblemType = "MATH"
)

// Duel is the central aggregate. It owns its Participants; other entities
// reach it only by ID.
type Duel struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Mode            DuelMode    `gorm:"size:20;not null;index" json:"mode"`
	Status          DuelStatus  `gorm:"size:20;not null;default:WAITING;index" json:"status"`
	Difficulty      Difficulty  `gorm:"size:10;not null" json:"difficulty"`
	ProblemType     ProblemType `gorm:"size:30;not null" json:"problem_type"`
	ProblemRef      *uuid.UUID  `gorm:"type:uuid;index" json:"problem_ref"`
	RoomCode        *string     `gorm:"size:10;uniqueIndex" json:"room_code,omitempty"`
	DurationSeconds *int        `json:"duration_seconds"`

	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;index" json:"updated_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Participants []Participant `gorm:"foreignKey:DuelRef;constraint:OnDelete:CASCADE" json:"participants"`
}

func (Duel) TableName() string { return "duels" }

// Winner returns the winning participant, if any.
func (d *Duel) Winner() *Participant {
	for i := range d.Participants {
		if d.Participants[i].IsWinner {
			return &d.Participants[i]
		}
	}
	return nil
}

// ParticipantFor returns the participant belonging to userRef, if present.
func (d *Duel) ParticipantFor(userRef uuid.UUID) *Participant {
	for i := range d.Participants {
		if d.Participants[i].UserRef != nil && *d.Participants[i].UserRef == userRef {
			return &d.Participants[i]
		}
	}
	return nil
}

// Participant is one side of a Duel: a user or an AI.
type Participant struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	DuelRef      uuid.UUID   `gorm:"type:uuid;not null;index:idx_participant_duel" json:"duel_ref"`
	UserRef      *uuid.UUID  `gorm:"type:uuid;index:idx_participant_user" json:"user_ref"`
	Username     string      `gorm:"size:64;not null" json:"username"`
	IsAI         bool        `gorm:"not null;default:false" json:"is_ai"`
	AIDifficulty *Difficulty `gorm:"size:10" json:"ai_difficulty,omitempty"`

	RatingBefore int  `gorm:"not null" json:"rating_before"`
	RatingAfter  *int `json:"rating_after"`
	RatingDelta  *int `json:"rating_delta"`

	IsWinner             bool       `gorm:"not null;default:false" json:"is_winner"`
	SubmissionTime       *time.Time `json:"submission_time"`
	SolveDurationSeconds *int       `json:"solve_duration_seconds"`
	TestsPassed          int        `gorm:"not null;default:0" json:"tests_passed"`
	TotalTests           int        `gorm:"not null;default:0" json:"total_tests"`
	FinalCode            *string    `gorm:"type:text" json:"final_code,omitempty"`
	Language             string     `gorm:"size:20;not null;default:python" json:"language"`

	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (Participant) TableName() string { return "duel_participants" }
