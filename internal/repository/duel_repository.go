package repository

import (
	"context"
	"errors"
	"time"

	"codeduel/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateDuel inserts a new duel with its initial participant(s).
func (r *Repository) CreateDuel(ctx context.Context, duel *models.Duel) error {
	return r.db.WithContext(ctx).Create(duel).Error
}

// GetDuelByID loads a duel with its participants, without a lock.
func (r *Repository) GetDuelByID(ctx context.Context, id uuid.UUID) (*models.Duel, error) {
	var duel models.Duel
	err := r.db.WithContext(ctx).Preload("Participants").Where("id = ?", id).First(&duel).Error
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// GetDuelByRoomCode loads a waiting private-room duel by its room code.
func (r *Repository) GetDuelByRoomCode(ctx context.Context, code string) (*models.Duel, error) {
	var duel models.Duel
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("room_code = ?", code).First(&duel).Error
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// WithDuelLock runs fn inside a transaction holding a row-level lock
// (`SELECT … FOR UPDATE`) on the named duel: the duel row is the atomic
// unit of mutation, so every state transition reads, validates
// invariants, writes and commits inside a single locked transaction.
// The locked duel (with participants loaded) is passed to fn; fn's
// returned error aborts the transaction.
func (r *Repository) WithDuelLock(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, duel *models.Duel) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var duel models.Duel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&duel).Error
		if err != nil {
			return err
		}
		if err := tx.Where("duel_ref = ?", id).Find(&duel.Participants).Error; err != nil {
			return err
		}
		return fn(tx, &duel)
	})
}

// ActiveDuelForUser returns the user's single non-terminal duel, if any
// (a user has at most one Waiting or InProgress duel at a time).
func (r *Repository) ActiveDuelForUser(ctx context.Context, userRef uuid.UUID, includeWaiting bool) (*models.Duel, error) {
	statuses := []models.DuelStatus{models.StatusInProgress}
	if includeWaiting {
		statuses = append(statuses, models.StatusWaiting)
	}

	var participantRows []models.Participant
	if err := r.db.WithContext(ctx).Where("user_ref = ?", userRef).Find(&participantRows).Error; err != nil {
		return nil, err
	}
	if len(participantRows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	duelIDs := make([]uuid.UUID, 0, len(participantRows))
	for _, p := range participantRows {
		duelIDs = append(duelIDs, p.DuelRef)
	}

	var duel models.Duel
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status IN ?", duelIDs, statuses).
		Order("created_at DESC").
		Preload("Participants").
		First(&duel).Error
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// ClaimWaitingOpponentDuel finds the oldest Waiting duel of the given mode
// (and, if set, difficulty) whose sole participant is not callerRef, locks
// it FOR UPDATE, and returns it still locked within the active transaction
// tx so the caller can add the second participant and flip to InProgress
// atomically. This implements FIFO matchmaking and the no-double-pairing
// invariant: SKIP LOCKED means two concurrent joins never claim the same
// waiting duel.
func (r *Repository) ClaimWaitingOpponentDuel(ctx context.Context, mode models.DuelMode, difficulty *models.Difficulty, callerRef uuid.UUID, fn func(tx *gorm.DB, duel *models.Duel) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Model(&models.Duel{}).
			Where("mode = ? AND status = ?", mode, models.StatusWaiting).
			Order("created_at ASC")
		if difficulty != nil {
			q = q.Where("difficulty = ?", *difficulty)
		}

		var candidates []models.Duel
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}

		for _, candidate := range candidates {
			var participants []models.Participant
			if err := tx.Where("duel_ref = ?", candidate.ID).Find(&participants).Error; err != nil {
				return err
			}
			if len(participants) != 1 {
				continue
			}
			if participants[0].UserRef != nil && *participants[0].UserRef == callerRef {
				continue
			}
			candidate.Participants = participants
			return fn(tx, &candidate)
		}
		return ErrNoWaitingDuel
	})
}

// ErrNoWaitingDuel is returned by ClaimWaitingOpponentDuel when no
// candidate is available; callers treat this as "retry or create".
var ErrNoWaitingDuel = errors.New("repository: no waiting duel available")

// UpdateDuel persists duel field changes (used outside of WithDuelLock
// only for read-derived denormalized fields; state transitions always go
// through WithDuelLock).
func (r *Repository) UpdateDuel(ctx context.Context, duel *models.Duel) error {
	return r.db.WithContext(ctx).Save(duel).Error
}

// AddParticipant inserts a participant row within an existing transaction.
func (r *Repository) AddParticipant(tx *gorm.DB, participant *models.Participant) error {
	return tx.Create(participant).Error
}

// UpdateParticipant persists a participant row within an existing
// transaction (used for submission/winner bookkeeping).
func (r *Repository) UpdateParticipant(tx *gorm.DB, participant *models.Participant) error {
	return tx.Save(participant).Error
}

// WaitingDuelsOlderThan returns Waiting duels of the given mode created
// before the cutoff, for the sweeper's timeout policy.
func (r *Repository) WaitingDuelsOlderThan(ctx context.Context, mode models.DuelMode, cutoff time.Time) ([]models.Duel, error) {
	var duels []models.Duel
	err := r.db.WithContext(ctx).
		Where("mode = ? AND status = ? AND created_at < ?", mode, models.StatusWaiting, cutoff).
		Preload("Participants").
		Find(&duels).Error
	return duels, err
}

// InProgressDuelsOlderThan returns InProgress duels started before the
// cutoff, for the sweeper's per-duel deadline.
func (r *Repository) InProgressDuelsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Duel, error) {
	var duels []models.Duel
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.StatusInProgress, cutoff).
		Find(&duels).Error
	return duels, err
}

// RecentDuelsForUser returns the user's most recent duels for /duels/history.
func (r *Repository) RecentDuelsForUser(ctx context.Context, userRef uuid.UUID, limit int) ([]models.Duel, error) {
	var participantRows []models.Participant
	if err := r.db.WithContext(ctx).Where("user_ref = ?", userRef).Find(&participantRows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participantRows))
	for _, p := range participantRows {
		ids = append(ids, p.DuelRef)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var duels []models.Duel
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Limit(limit).
		Preload("Participants").
		Find(&duels).Error
	return duels, err
}
