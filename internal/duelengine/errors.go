package duelengine

import "errors"

// Error taxonomy: client errors surface as 4xx at the REST boundary,
// conflict errors are retriable/acceptable-outcome, the rest bubble up
// as 5xx.
var (
	ErrNotParticipant   = errors.New("duelengine: caller is not a participant of this duel")
	ErrDuelNotFound     = errors.New("duelengine: duel not found")
	ErrAlreadyActive    = errors.New("duelengine: caller already has an active duel")
	ErrNotWaiting       = errors.New("duelengine: duel is not in the Waiting state")
	ErrNotInProgress    = errors.New("duelengine: duel is not in the InProgress state")
	ErrRoomCodeRequired = errors.New("duelengine: room code required for private-room join")
	ErrRoomNotFound     = errors.New("duelengine: no waiting duel for that room code")
)
