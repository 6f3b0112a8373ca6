package duelengine

import (
	"context"
	"fmt"
	"log"
	"time"

	"codeduel/internal/eventfabric"
	"codeduel/internal/judge"
	"codeduel/internal/metrics"
	"codeduel/internal/models"
	"codeduel/internal/rating"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmitResult is SubmitCode's return value: the graded per-case
// outcome plus whether this submission won the duel.
type SubmitResult struct {
	*judge.Result
	Won     bool
	TooLate bool
}

// SubmitCode grades code against the duel's full test suite (hidden
// cases included) and, on a first full pass, completes the duel.
// A submission that passes after another participant already won is
// graded normally but reported with TooLate=true and no winner flag.
func (e *Engine) SubmitCode(ctx context.Context, duelID, userRef uuid.UUID, code, language string) (*SubmitResult, error) {
	_, problem, err := e.loadDuel(ctx, duelID, userRef, true)
	if err != nil {
		return nil, err
	}

	result, err := e.grade(ctx, code, language, problem, problem.TestCases)
	if err != nil {
		return nil, err
	}
	e.saveSnapshot(ctx, duelID, userRef, code, language, result)

	sr := &SubmitResult{Result: result}
	var completed *models.Duel

	lockErr := e.repo.WithDuelLock(ctx, duelID, func(tx *gorm.DB, locked *models.Duel) error {
		participant := locked.ParticipantFor(userRef)
		if participant == nil {
			return ErrNotParticipant
		}

		now := time.Now()
		participant.TestsPassed = result.Passed
		participant.TotalTests = result.Total
		participant.FinalCode = &code
		participant.Language = language

		if locked.Status != models.StatusInProgress {
			sr.TooLate = result.AllPassed()
			return e.repo.UpdateParticipant(tx, participant)
		}

		alreadyWon := locked.Winner() != nil
		if !result.AllPassed() || alreadyWon {
			sr.TooLate = result.AllPassed() && alreadyWon
			return e.repo.UpdateParticipant(tx, participant)
		}

		participant.IsWinner = true
		participant.SubmissionTime = &now
		if locked.StartedAt != nil {
			solveSeconds := int(now.Sub(*locked.StartedAt).Seconds())
			participant.SolveDurationSeconds = &solveSeconds
		}
		if err := e.repo.UpdateParticipant(tx, participant); err != nil {
			return err
		}

		opponent := opponentOf(locked, participant)
		if opponent != nil {
			applyParticipantRatingDeltas(participant, opponent, e.cfg.EloKFactor)
			if err := e.repo.UpdateParticipant(tx, opponent); err != nil {
				return err
			}
			if err := e.repo.UpdateParticipant(tx, participant); err != nil {
				return err
			}
		}

		locked.Status = models.StatusCompleted
		locked.CompletedAt = &now
		if locked.StartedAt != nil {
			duration := int(now.Sub(*locked.StartedAt).Seconds())
			locked.DurationSeconds = &duration
		}
		if err := tx.Save(locked).Error; err != nil {
			return err
		}

		sr.Won = true
		completed = locked
		return nil
	})
	if lockErr != nil {
		return nil, fmt.Errorf("duelengine: submit: %w", lockErr)
	}

	if completed != nil {
		e.finishDuel(completed)
	}

	return sr, nil
}

// TestCode grades code against only the duel's visible cases and never
// mutates duel state.
func (e *Engine) TestCode(ctx context.Context, duelID, userRef uuid.UUID, code, language string) (*judge.Result, error) {
	_, problem, err := e.loadDuel(ctx, duelID, userRef, false)
	if err != nil {
		return nil, err
	}
	result, err := e.grade(ctx, code, language, problem, problem.VisibleTestCases())
	if err != nil {
		return nil, err
	}
	e.saveSnapshot(ctx, duelID, userRef, code, language, result)
	return result, nil
}

// saveSnapshot records the append-only audit row for a test/submit grade.
// Failures here must not fail the grading call itself — the snapshot is
// an audit trail, not part of the duel state machine.
func (e *Engine) saveSnapshot(ctx context.Context, duelID, userRef uuid.UUID, code, language string, result *judge.Result) {
	snapshot := &models.CodeSnapshot{
		ID:              uuid.New(),
		DuelRef:         duelID,
		UserRef:         userRef,
		Code:            code,
		Language:        language,
		Timestamp:       time.Now(),
		TestsPassed:     result.Passed,
		TestsFailed:     result.Failed,
		ExecutionTimeMs: result.ExecutionTimeMs,
	}
	if result.Error != judge.ErrorNone {
		msg := string(result.Error)
		snapshot.ErrorMessage = &msg
	}
	if err := e.repo.CreateCodeSnapshot(ctx, snapshot); err != nil {
		log.Printf("duelengine: save code snapshot for duel %s: %v", duelID, err)
	}
}

// loadDuel loads duelID and its bound problem for userRef. The duel must
// be InProgress, or also Completed when allowCompleted is set (a submit
// that arrives after the winner).
func (e *Engine) loadDuel(ctx context.Context, duelID, userRef uuid.UUID, allowCompleted bool) (*models.Duel, *models.Problem, error) {
	duel, err := e.repo.GetDuelByID(ctx, duelID)
	if err != nil {
		return nil, nil, ErrDuelNotFound
	}
	if duel.ParticipantFor(userRef) == nil {
		return nil, nil, ErrNotParticipant
	}
	if duel.Status != models.StatusInProgress && !(allowCompleted && duel.Status == models.StatusCompleted) {
		return nil, nil, ErrNotInProgress
	}
	if duel.ProblemRef == nil {
		return nil, nil, fmt.Errorf("duelengine: duel %s has no bound problem", duelID)
	}
	problem, err := e.repo.GetProblemByID(ctx, *duel.ProblemRef)
	if err != nil {
		return nil, nil, fmt.Errorf("duelengine: load problem: %w", err)
	}
	return duel, problem, nil
}

func (e *Engine) grade(ctx context.Context, code, language string, problem *models.Problem, cases []models.TestCase) (*judge.Result, error) {
	req := judge.Request{
		Code:         code,
		Language:     judge.Language(language),
		FunctionName: problem.FunctionName,
		TestCases:    cases,
		SetSemantics: problem.SetSemantics,
		TimeLimit:    e.cfg.SubmissionTimeLimit,
		MemoryMB:     e.cfg.SubmissionMemoryMB,
	}

	result, err := e.judge.Execute(ctx, req)
	if err != nil {
		// A system error (sandbox/infra failure, not a test failure) gets
		// one retry before surfacing.
		result, err = e.judge.Execute(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("duelengine: judge system error: %w", err)
		}
	}
	return result, nil
}

// applyParticipantRatingDeltas sets the per-participant RatingBefore/
// After/Delta fields transactionally with the winner transition
//, using the pure ELO function directly so
// this doesn't depend on rating.Service's persisted PlayerRating rows
// (those are updated after commit, see finishDuel).
func applyParticipantRatingDeltas(winner, loser *models.Participant, kFactor int) {
	newWinnerElo, newLoserElo := rating.Update(winner.RatingBefore, loser.RatingBefore, kFactor)

	winnerDelta := newWinnerElo - winner.RatingBefore
	loserDelta := newLoserElo - loser.RatingBefore
	winner.RatingAfter = &newWinnerElo
	winner.RatingDelta = &winnerDelta
	loser.RatingAfter = &newLoserElo
	loser.RatingDelta = &loserDelta
}

func opponentOf(duel *models.Duel, p *models.Participant) *models.Participant {
	for i := range duel.Participants {
		if duel.Participants[i].ID != p.ID {
			return &duel.Participants[i]
		}
	}
	return nil
}

// finishDuel runs the post-commit side effects of a Completed
// transition: AI task cancellation, rating/history persistence, and
// the duel_complete broadcast.
func (e *Engine) finishDuel(duel *models.Duel) {
	e.cancelAITask(duel.ID)

	ctx := context.Background()
	if err := e.rating.ApplyDuelResult(ctx, duel); err != nil {
		// Rating bookkeeping failure must not unwind the already-committed
		// duel transition.
		log.Printf("duelengine: apply duel result for duel %s: %v", duel.ID, err)
	}
	e.recordCompletion(ctx, duel)
	e.broadcastCompletion(duel)
	metrics.DuelsCompletedTotal.WithLabelValues(string(duel.Status)).Inc()
	metrics.DuelsInProgress.Dec()
}

func (e *Engine) broadcastCompletion(duel *models.Duel) {
	winner := duel.Winner()
	payload := eventfabric.DuelCompletePayload{
		Usernames:    map[string]string{},
		RatingDeltas: map[string]int{},
	}
	for _, p := range duel.Participants {
		payload.Usernames[p.ID.String()] = p.Username
		if p.RatingDelta != nil {
			payload.RatingDeltas[p.ID.String()] = *p.RatingDelta
		}
	}
	if winner != nil {
		payload.WinnerID = &winner.ID
		payload.SolveTime = winner.SolveDurationSeconds
	}
	e.fabric.Broadcast(duel.ID, eventfabric.DuelCompleteMessage(payload), uuid.Nil)
	go e.fabric.Close(duel.ID, closeNormal, "duel complete", closeGrace)
}

// closeNormal is the standard WebSocket normal-closure code (RFC 6455),
// used once a duel_complete payload has been broadcast.
const closeNormal = 1000
