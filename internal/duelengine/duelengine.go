// Package duelengine implements the duel lifecycle state machine:
// create, match, start, accept submissions, complete, cancel, timeout.
// It owns every duel invariant and is the only package that transitions
// a Duel's status.
package duelengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeduel/internal/aiopponent"
	"codeduel/internal/antidupe"
	"codeduel/internal/config"
	"codeduel/internal/eventfabric"
	"codeduel/internal/judge"
	"codeduel/internal/metrics"
	"codeduel/internal/models"
	"codeduel/internal/rating"
	"codeduel/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// closeGrace is how long Fabric.Close waits before dropping sessions
// after a duel_complete broadcast, so the payload has time to land.
const closeGrace = 2 * time.Second

// Grader is the subset of *judge.Judge the engine needs. Accepting the
// interface rather than the concrete type lets tests substitute a
// deterministic stub in place of a real subprocess sandbox.
type Grader interface {
	Execute(ctx context.Context, req judge.Request) (*judge.Result, error)
}

// Engine is the duel state machine. It holds no duel state itself —
// everything lives in Repository — except the set of cancel functions
// for in-flight AI tasks, which must stop promptly when their duel
// reaches a terminal state.
type Engine struct {
	repo     *repository.Repository
	antidupe *antidupe.Index
	judge    Grader
	rating   *rating.Service
	fabric   *eventfabric.Fabric
	ai       *aiopponent.Opponent
	cfg      config.DuelConfig

	mu          sync.Mutex
	aiCancelers map[uuid.UUID]context.CancelFunc
}

func New(repo *repository.Repository, idx *antidupe.Index, j Grader, ratingSvc *rating.Service, fabric *eventfabric.Fabric, ai *aiopponent.Opponent, cfg config.DuelConfig) *Engine {
	return &Engine{
		repo:        repo,
		antidupe:    idx,
		judge:       j,
		rating:      ratingSvc,
		fabric:      fabric,
		ai:          ai,
		cfg:         cfg,
		aiCancelers: make(map[uuid.UUID]context.CancelFunc),
	}
}

// CreateDuel creates a new duel for user in the given mode. If the
// caller already has a Waiting duel it is cancelled first; an existing
// InProgress duel is returned as-is.
func (e *Engine) CreateDuel(ctx context.Context, userRef uuid.UUID, username string, mode models.DuelMode, difficulty models.Difficulty, problemType models.ProblemType) (*models.Duel, error) {
	if active, err := e.repo.ActiveDuelForUser(ctx, userRef, true); err == nil {
		if active.Status == models.StatusInProgress {
			return active, nil
		}
		if active.Status == models.StatusWaiting {
			if _, cancelErr := e.CancelDuel(ctx, userRef, &active.ID); cancelErr != nil {
				return nil, fmt.Errorf("duelengine: cancel stale waiting duel: %w", cancelErr)
			}
		}
	}

	duel := &models.Duel{
		ID:          uuid.New(),
		Mode:        mode,
		Status:      models.StatusWaiting,
		Difficulty:  difficulty,
		ProblemType: problemType,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Participants: []models.Participant{{
			ID:       uuid.New(),
			UserRef:  &userRef,
			Username: username,
			JoinedAt: time.Now(),
		}},
	}

	if mode == models.ModePrivateRoom {
		code, err := generateRoomCode()
		if err != nil {
			return nil, fmt.Errorf("duelengine: generate room code: %w", err)
		}
		duel.RoomCode = &code
	}

	if mode == models.ModeAIOpponent {
		if err := e.bindAIOpponent(ctx, duel, difficulty, problemType); err != nil {
			return nil, err
		}
	}

	if err := e.repo.CreateDuel(ctx, duel); err != nil {
		return nil, fmt.Errorf("duelengine: create duel: %w", err)
	}
	metrics.DuelsCreatedTotal.WithLabelValues(string(mode)).Inc()
	if duel.Status == models.StatusInProgress {
		metrics.DuelsInProgress.Inc()
	}

	if mode == models.ModeAIOpponent {
		e.dispatchAI(duel)
	}

	return duel, nil
}

// bindAIOpponent selects a problem and appends the synthetic AI
// participant, then flips duel to InProgress — CreateDuel's
// AIOpponent branch skips the Waiting stage entirely.
func (e *Engine) bindAIOpponent(ctx context.Context, duel *models.Duel, difficulty models.Difficulty, problemType models.ProblemType) error {
	humanRef := *duel.Participants[0].UserRef
	problem, err := e.antidupe.Select(ctx, []uuid.UUID{humanRef}, difficulty, problemType)
	if err != nil {
		return fmt.Errorf("duelengine: select problem for AI duel: %w", err)
	}

	now := time.Now()
	duel.ProblemRef = &problem.ID
	duel.Status = models.StatusInProgress
	duel.StartedAt = &now
	duel.Participants[0].RatingBefore = e.currentEloOrDefault(ctx, humanRef)
	duel.Participants = append(duel.Participants, models.Participant{
		ID:           uuid.New(),
		UserRef:      nil,
		Username:     "CodeDuel Bot",
		IsAI:         true,
		AIDifficulty: &difficulty,
		RatingBefore: rating.AIFixedElo(difficulty),
		JoinedAt:     now,
		Language:     "python",
	})
	return nil
}

func (e *Engine) currentEloOrDefault(ctx context.Context, userRef uuid.UUID) int {
	r, err := e.repo.GetOrCreatePlayerRating(ctx, userRef)
	if err != nil {
		return 1200
	}
	return r.Elo
}

// dispatchAI launches the AI opponent's cooperative task for duel,
// tracked so a terminal transition can cancel it promptly.
func (e *Engine) dispatchAI(duel *models.Duel) {
	aiParticipant := duel.Participants[1]
	problemRef := duel.ProblemRef
	if problemRef == nil {
		return
	}
	problem, err := e.repo.GetProblemByID(context.Background(), *problemRef)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.aiCancelers[duel.ID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.aiCancelers, duel.ID)
			e.mu.Unlock()
			cancel()
		}()
		e.ai.Run(ctx, e.fabric, duel.ID, aiParticipant.ID, *aiParticipant.AIDifficulty, problem, "python")
	}()
}

func (e *Engine) cancelAITask(duelID uuid.UUID) {
	e.mu.Lock()
	cancel, ok := e.aiCancelers[duelID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelAITask stops duelID's in-flight AI task, if any. Exported for
// the sweeper (C9), which finalizes timed-out duels outside the normal
// CompleteDuel/CancelDuel paths this package otherwise owns exclusively.
func (e *Engine) CancelAITask(duelID uuid.UUID) {
	e.cancelAITask(duelID)
}

// JoinDuel matches user against the oldest compatible Waiting duel
// (FIFO) and transitions it to InProgress. It returns
// (nil, nil) when no candidate is available — the caller retries or
// creates a duel — and ErrRoomNotFound for an unmatched private code.
func (e *Engine) JoinDuel(ctx context.Context, userRef uuid.UUID, username string, roomCode *string, difficulty *models.Difficulty) (*models.Duel, error) {
	if roomCode != nil {
		return e.joinByRoomCode(ctx, userRef, username, *roomCode)
	}
	return e.joinRandom(ctx, userRef, username, difficulty)
}

func (e *Engine) joinRandom(ctx context.Context, userRef uuid.UUID, username string, difficulty *models.Difficulty) (*models.Duel, error) {
	var result *models.Duel
	err := e.repo.ClaimWaitingOpponentDuel(ctx, models.ModeRandomPlayer, difficulty, userRef, func(tx *gorm.DB, duel *models.Duel) error {
		if err := e.bindAndStart(ctx, tx, duel, userRef, username); err != nil {
			return err
		}
		result = duel
		return nil
	})
	if err != nil {
		if err == repository.ErrNoWaitingDuel {
			return nil, nil
		}
		return nil, fmt.Errorf("duelengine: join random duel: %w", err)
	}

	e.fabric.Broadcast(result.ID, eventfabric.DuelStartedMessage(result.ID), uuid.Nil)
	return result, nil
}

func (e *Engine) joinByRoomCode(ctx context.Context, userRef uuid.UUID, username, roomCode string) (*models.Duel, error) {
	existing, err := e.repo.GetDuelByRoomCode(ctx, roomCode)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	if existing.Status != models.StatusWaiting {
		return nil, ErrRoomNotFound
	}

	var result *models.Duel
	err = e.repo.WithDuelLock(ctx, existing.ID, func(tx *gorm.DB, duel *models.Duel) error {
		if duel.Status != models.StatusWaiting {
			return ErrRoomNotFound
		}
		if len(duel.Participants) != 1 {
			return ErrRoomNotFound
		}
		if duel.Participants[0].UserRef != nil && *duel.Participants[0].UserRef == userRef {
			return ErrRoomNotFound
		}
		if err := e.bindAndStart(ctx, tx, duel, userRef, username); err != nil {
			return err
		}
		result = duel
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.fabric.Broadcast(result.ID, eventfabric.DuelStartedMessage(result.ID), uuid.Nil)
	return result, nil
}

// bindAndStart selects a problem, appends the joining participant, and
// flips duel to InProgress within the caller's locked transaction.
func (e *Engine) bindAndStart(ctx context.Context, tx *gorm.DB, duel *models.Duel, userRef uuid.UUID, username string) error {
	existingRef := duel.Participants[0].UserRef
	players := []uuid.UUID{userRef}
	if existingRef != nil {
		players = append(players, *existingRef)
	}

	problem, err := e.antidupe.Select(ctx, players, duel.Difficulty, duel.ProblemType)
	if err != nil {
		return fmt.Errorf("duelengine: select problem: %w", err)
	}

	now := time.Now()
	duel.ProblemRef = &problem.ID
	duel.Status = models.StatusInProgress
	duel.StartedAt = &now
	duel.UpdatedAt = now

	joiner := models.Participant{
		ID:           uuid.New(),
		DuelRef:      duel.ID,
		UserRef:      &userRef,
		Username:     username,
		RatingBefore: e.currentEloOrDefault(ctx, userRef),
		JoinedAt:     now,
	}
	if err := e.repo.AddParticipant(tx, &joiner); err != nil {
		return err
	}
	duel.Participants = append(duel.Participants, joiner)

	if err := tx.Save(duel).Error; err != nil {
		return err
	}
	metrics.DuelsInProgress.Inc()
	return nil
}
