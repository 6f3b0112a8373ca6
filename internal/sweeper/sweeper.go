// Package sweeper implements a periodic background task that cancels
// duels stuck in Waiting past their mode's timeout and times out
// InProgress duels past their deadline, on a ticker-driven goroutine.
package sweeper

import (
	"context"
	"log"
	"time"

	"codeduel/internal/config"
	"codeduel/internal/duelengine"
	"codeduel/internal/eventfabric"
	"codeduel/internal/metrics"
	"codeduel/internal/models"
	"codeduel/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// closeTimedOut is the event fabric's internal-error close code, reused
// here since a sweeper timeout is an abnormal end from the client's
// point of view and no more specific code is defined for it.
const closeTimedOut = eventfabric.CloseInternalError

// Sweeper periodically sweeps stale duels.
type Sweeper struct {
	repo   *repository.Repository
	fabric *eventfabric.Fabric
	engine *duelengine.Engine
	cfg    config.DuelConfig
}

func New(repo *repository.Repository, fabric *eventfabric.Fabric, engine *duelengine.Engine, cfg config.DuelConfig) *Sweeper {
	return &Sweeper{repo: repo, fabric: fabric, engine: engine, cfg: cfg}
}

// Start runs one sweep immediately, then every cfg.SweepInterval,
// until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		s.sweep(ctx)

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// sweep runs the three waiting-mode sweeps and the in-progress sweep
// concurrently via errgroup: each operates on a disjoint set of duels
// (partitioned by mode, or by status), so there's nothing to serialize
// between them. A failure in one sweep is logged and doesn't cancel the
// others — a stuck query for one mode shouldn't block timeout cleanup
// for the rest.
func (s *Sweeper) sweep(ctx context.Context) {
	var g errgroup.Group

	g.Go(func() error {
		if err := s.sweepWaiting(ctx, models.ModeRandomPlayer, s.cfg.WaitingTimeoutRandom); err != nil {
			log.Printf("sweeper: sweep waiting random duels: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.sweepWaiting(ctx, models.ModeAIOpponent, s.cfg.WaitingTimeoutAI); err != nil {
			log.Printf("sweeper: sweep waiting AI duels: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.sweepWaiting(ctx, models.ModePrivateRoom, s.cfg.WaitingTimeoutPrivate); err != nil {
			log.Printf("sweeper: sweep waiting private duels: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.sweepInProgress(ctx); err != nil {
			log.Printf("sweeper: sweep in-progress duels: %v", err)
		}
		return nil
	})

	_ = g.Wait()
}

func (s *Sweeper) sweepWaiting(ctx context.Context, mode models.DuelMode, timeout time.Duration) error {
	cutoff := time.Now().Add(-timeout)
	stale, err := s.repo.WaitingDuelsOlderThan(ctx, mode, cutoff)
	if err != nil {
		return err
	}
	for _, duel := range stale {
		if _, err := s.engine.CancelDuel(ctx, callerOf(&duel), &duel.ID); err != nil {
			log.Printf("sweeper: cancel stale waiting duel %s: %v", duel.ID, err)
		}
	}
	return nil
}

// sweepInProgress finalizes duels that have run past the configured
// per-duel deadline without a winner. Unlike CancelDuel (Waiting only),
// this is the one path outside C6's normal completion flow allowed to
// move a duel straight from InProgress to TimedOut.
func (s *Sweeper) sweepInProgress(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.InProgressDeadline)
	stale, err := s.repo.InProgressDuelsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, duel := range stale {
		if err := s.timeoutDuel(ctx, duel.ID); err != nil {
			log.Printf("sweeper: timeout duel %s: %v", duel.ID, err)
		}
	}
	return nil
}

func (s *Sweeper) timeoutDuel(ctx context.Context, duelID uuid.UUID) error {
	var timedOut *models.Duel
	err := s.repo.WithDuelLock(ctx, duelID, func(tx *gorm.DB, duel *models.Duel) error {
		if duel.Status != models.StatusInProgress {
			return nil
		}
		now := time.Now()
		duel.Status = models.StatusTimedOut
		duel.CompletedAt = &now
		if duel.StartedAt != nil {
			duration := int(now.Sub(*duel.StartedAt).Seconds())
			duel.DurationSeconds = &duration
		}
		if err := tx.Save(duel).Error; err != nil {
			return err
		}
		timedOut = duel
		return nil
	})
	if err != nil {
		return err
	}
	if timedOut != nil {
		s.finalizeTimedOutDuel(timedOut)
		metrics.DuelsCompletedTotal.WithLabelValues(string(models.StatusTimedOut)).Inc()
		metrics.DuelsInProgress.Dec()
	}
	return nil
}

// finalizeTimedOutDuel cancels the AI task, broadcasts duel_complete with
// empty rating deltas and closes the duel's sessions. A timeout has no
// winner, so no achievements or ELO deltas apply, and no problem-usage
// or match-history rows are written for it.
func (s *Sweeper) finalizeTimedOutDuel(duel *models.Duel) {
	s.engine.CancelAITask(duel.ID)

	payload := eventfabric.DuelCompletePayload{
		Usernames:    map[string]string{},
		RatingDeltas: map[string]int{},
	}
	for _, p := range duel.Participants {
		payload.Usernames[p.ID.String()] = p.Username
	}
	s.fabric.Broadcast(duel.ID, eventfabric.DuelCompleteMessage(payload), uuid.Nil)
	go s.fabric.Close(duel.ID, closeTimedOut, "duel timed out", 2*time.Second)
}

func callerOf(duel *models.Duel) uuid.UUID {
	if len(duel.Participants) == 0 || duel.Participants[0].UserRef == nil {
		return uuid.Nil
	}
	return *duel.Participants[0].UserRef
}
