package duelengine

import (
	"context"
	"fmt"
	"time"

	"codeduel/internal/metrics"
	"codeduel/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancelDuel cancels duelID (or the caller's own Waiting duel if duelID
// is nil) if it is still Waiting. Cancelling an already-terminal duel is
// a no-op returning false, and the row lock guarantees cancellation
// never races a concurrent submission.
func (e *Engine) CancelDuel(ctx context.Context, userRef uuid.UUID, duelID *uuid.UUID) (bool, error) {
	id := uuid.Nil
	if duelID != nil {
		id = *duelID
	} else {
		active, err := e.repo.ActiveDuelForUser(ctx, userRef, true)
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("duelengine: find active duel: %w", err)
		}
		id = active.ID
	}

	cancelled := false
	err := e.repo.WithDuelLock(ctx, id, func(tx *gorm.DB, duel *models.Duel) error {
		if duel.ParticipantFor(userRef) == nil {
			return ErrNotParticipant
		}
		if duel.Status != models.StatusWaiting {
			return nil
		}
		now := time.Now()
		duel.Status = models.StatusCancelled
		duel.CompletedAt = &now
		if err := tx.Save(duel).Error; err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("duelengine: cancel: %w", err)
	}
	if cancelled {
		e.cancelAITask(id)
		metrics.DuelsCompletedTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	}
	return cancelled, nil
}
