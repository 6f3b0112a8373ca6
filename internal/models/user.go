package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity record the duel subsystem needs. Full
// registration/OAuth is out of scope; this only anchors the
// foreign keys used by Duel, Participant and PlayerRating.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// AIOpponentUserRef is a sentinel user id reserved for the synthetic AI.
// It never has a row in `users`. The engine's AI participant leaves
// UserRef nil, and rating.Service skips the AI by Participant.IsAI
// rather than by this id, so it never writes a rating for the AI.
var AIOpponentUserRef = uuid.MustParse("00000000-0000-0000-0000-000000000001")
