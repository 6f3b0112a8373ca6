package duelengine

import (
	"context"
	"log"
	"time"

	"codeduel/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// recordCompletion writes the problem-usage and match-history side
// effects of a completed duel. The two are
// independent of each other and of the rating update already applied in
// finishDuel, so they run concurrently via errgroup.WithContext, where
// the first error cancels the other; the sweeper fans out its per-mode
// sweeps with golang.org/x/sync/errgroup too.
func (e *Engine) recordCompletion(ctx context.Context, duel *models.Duel) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.markProblemUsage(gctx, duel) })
	g.Go(func() error { return e.writeMatchHistory(gctx, duel) })

	if err := g.Wait(); err != nil {
		log.Printf("duelengine: record completion for duel %s: %v", duel.ID, err)
	}
}

func (e *Engine) markProblemUsage(ctx context.Context, duel *models.Duel) error {
	if duel.ProblemRef == nil {
		return nil
	}
	problem, err := e.repo.GetProblemByID(ctx, *duel.ProblemRef)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := e.repo.MarkProblemUsed(ctx, problem.ID, now); err != nil {
		return err
	}

	for _, p := range duel.Participants {
		if p.UserRef == nil {
			continue
		}
		err := e.repo.RecordProblemHistory(ctx, &models.UserProblemHistory{
			ID:                   uuid.New(),
			UserRef:              *p.UserRef,
			ProblemRef:           problem.ID,
			DuelRef:              duel.ID,
			Fingerprint:          problem.Fingerprint,
			UsedAt:               now,
			Solved:               p.IsWinner,
			TestsPassed:          p.TestsPassed,
			TotalTests:           p.TotalTests,
			SolveDurationSeconds: p.SolveDurationSeconds,
		})
		if err != nil {
			return err
		}
		e.antidupe.InvalidateUser(*p.UserRef)
	}
	return nil
}

func (e *Engine) writeMatchHistory(ctx context.Context, duel *models.Duel) error {
	for _, p := range duel.Participants {
		if p.UserRef == nil {
			continue
		}
		opponent := opponentOf(duel, &p)
		opponentName := ""
		if opponent != nil {
			opponentName = opponent.Username
		}
		delta := 0
		if p.RatingDelta != nil {
			delta = *p.RatingDelta
		}
		entry := &models.MatchHistoryEntry{
			ID:           uuid.New(),
			DuelRef:      duel.ID,
			UserRef:      *p.UserRef,
			OpponentName: opponentName,
			Won:          p.IsWinner,
			RatingDelta:  delta,
			SolveSeconds: p.SolveDurationSeconds,
			PlayedAt:     time.Now(),
		}
		if err := e.repo.CreateMatchHistoryEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
