package eventfabric

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func envelope(t MessageType, payload interface{}) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Type: t, Payload: data}
}

// CodeUpdatePayload is the `code_update` message payload, broadcast to
// the opponent on a debounced interval as the caller types.
type CodeUpdatePayload struct {
	UserID         uuid.UUID `json:"userId"`
	Code           string    `json:"code"`
	Language       string    `json:"language"`
	CursorPosition *int      `json:"cursorPosition,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func CodeUpdateMessage(userID uuid.UUID, code, language string, cursor *int) Envelope {
	return envelope(TypeCodeUpdate, CodeUpdatePayload{
		UserID: userID, Code: code, Language: language, CursorPosition: cursor, Timestamp: time.Now(),
	})
}

type TypingStatusPayload struct {
	UserID    uuid.UUID `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

func TypingStatusMessage(userID uuid.UUID, isTyping bool) Envelope {
	return envelope(TypeTypingStatus, TypingStatusPayload{UserID: userID, IsTyping: isTyping, Timestamp: time.Now()})
}

type TestResultPayload struct {
	UserID          uuid.UUID `json:"userId"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Total           int       `json:"total"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	Error           string    `json:"error,omitempty"`
	ProgressPercent int       `json:"progressPercent"`
	IsCorrect       bool      `json:"isCorrect"`
}

func TestResultMessage(p TestResultPayload) Envelope {
	return envelope(TypeTestResult, p)
}

type DuelStartedPayload struct {
	DuelID    uuid.UUID `json:"duelId"`
	Timestamp time.Time `json:"timestamp"`
}

func DuelStartedMessage(duelID uuid.UUID) Envelope {
	return envelope(TypeDuelStarted, DuelStartedPayload{DuelID: duelID, Timestamp: time.Now()})
}

type DuelCompletePayload struct {
	WinnerID     *uuid.UUID        `json:"winnerId"`
	Usernames    map[string]string `json:"usernames"`
	SolveTime    *int              `json:"solveTime"`
	RatingDeltas map[string]int    `json:"ratingDeltas"`
}

func DuelCompleteMessage(p DuelCompletePayload) Envelope {
	return envelope(TypeDuelComplete, p)
}

type UserStatusPayload struct {
	UserID uuid.UUID `json:"userId"`
	Status string    `json:"status"`
}

func UserStatusMessage(userID uuid.UUID, status string) Envelope {
	return envelope(TypeUserStatus, UserStatusPayload{UserID: userID, Status: status})
}

type PingPongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

func PingMessage() Envelope { return envelope(TypePing, PingPongPayload{Timestamp: time.Now()}) }
func PongMessage() Envelope { return envelope(TypePong, PingPongPayload{Timestamp: time.Now()}) }

// DuelStatePayload is the full snapshot sent on (re)connect.
type DuelStatePayload struct {
	DuelID      uuid.UUID         `json:"duelId"`
	Status      string            `json:"status"`
	ProblemID   *uuid.UUID        `json:"problemId,omitempty"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	Snapshots   map[string]string `json:"snapshots"` // userID -> latest code
}

func DuelStateMessage(p DuelStatePayload) Envelope {
	return envelope(TypeDuelState, p)
}
