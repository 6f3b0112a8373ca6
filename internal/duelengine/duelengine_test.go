package duelengine

import (
	"context"
	"testing"
	"time"

	"codeduel/internal/aiopponent"
	"codeduel/internal/antidupe"
	"codeduel/internal/config"
	"codeduel/internal/eventfabric"
	"codeduel/internal/judge"
	"codeduel/internal/models"
	"codeduel/internal/problemgen"
	"codeduel/internal/rating"
	"codeduel/internal/repository"
	"codeduel/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGrader returns a fixed verdict regardless of input, so duel-engine
// tests exercise the state machine without a real subprocess sandbox.
type stubGrader struct {
	passed, total int
}

func (g *stubGrader) Execute(ctx context.Context, req judge.Request) (*judge.Result, error) {
	return &judge.Result{Passed: g.passed, Total: g.total, Failed: g.total - g.passed}, nil
}

func testCfg() config.DuelConfig {
	return config.DuelConfig{
		EloKFactor:          32,
		SubmissionTimeLimit: 5 * time.Second,
		SubmissionMemoryMB:  256,
	}
}

func newTestEngine(t *testing.T, repo *repository.Repository, grader Grader) *Engine {
	t.Helper()
	gen := problemgen.New("", "", nil)
	idx := antidupe.New(repo, gen, antidupe.DefaultConfig())
	ratingSvc := rating.New(repo, 32)
	fabric := eventfabric.New(0)
	ai := aiopponent.New("", "")
	return New(repo, idx, grader, ratingSvc, fabric, ai, testCfg())
}

func seedSolvableProblem(t *testing.T, repo *repository.Repository) *models.Problem {
	t.Helper()
	p := &models.Problem{
		ID:           uuid.New(),
		Title:        "Two Sum",
		Description:  "desc",
		Difficulty:   models.DifficultyEasy,
		ProblemType:  models.TypeArray,
		Fingerprint:  uuid.New().String(),
		FunctionName: "two_sum",
		TestCases:    []models.TestCase{{Input: "[[2,7],9]", ExpectedOutput: "[0,1]"}},
	}
	require.NoError(t, repo.CreateProblem(context.Background(), p))
	return p
}

func TestCreateDuelRandomPlayerStartsWaiting(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	user := uuid.New()
	duel, err := engine.CreateDuel(ctx, user, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, duel.Status)
	assert.Len(t, duel.Participants, 1)
	assert.Nil(t, duel.ProblemRef)
}

func TestCreateDuelIsIdempotentWhileInProgress(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	user := uuid.New()
	first, err := engine.CreateDuel(ctx, user, "alice", models.ModeAIOpponent, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, first.Status)

	second, err := engine.CreateDuel(ctx, user, "alice", models.ModeAIOpponent, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	engine.cancelAITask(first.ID)
}

func TestCreateDuelAIOpponentBindsProblemAndStarts(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	user := uuid.New()
	duel, err := engine.CreateDuel(ctx, user, "alice", models.ModeAIOpponent, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, duel.Status)
	assert.NotNil(t, duel.ProblemRef)
	require.Len(t, duel.Participants, 2)
	assert.True(t, duel.Participants[1].IsAI)

	engine.cancelAITask(duel.ID)
}

func TestJoinDuelRandomMatchesWaitingDuel(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	_, err := engine.CreateDuel(ctx, userA, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	joined, err := engine.JoinDuel(ctx, userB, "bob", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, models.StatusInProgress, joined.Status)
	assert.Len(t, joined.Participants, 2)
	assert.NotNil(t, joined.ProblemRef)
}

func TestJoinDuelRandomReturnsNilWhenNoCandidates(t *testing.T) {
	repo := testutil.NewRepository(t)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	joined, err := engine.JoinDuel(ctx, uuid.New(), "solo", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, joined)
}

func TestJoinDuelByRoomCode(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	host := uuid.New()
	created, err := engine.CreateDuel(ctx, host, "alice", models.ModePrivateRoom, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	require.NotNil(t, created.RoomCode)

	joined, err := engine.JoinDuel(ctx, uuid.New(), "bob", created.RoomCode, nil)
	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, models.StatusInProgress, joined.Status)
}

func TestJoinDuelByRoomCodeUnknownReturnsError(t *testing.T) {
	repo := testutil.NewRepository(t)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	bogus := "ZZZZZZ"
	_, err := engine.JoinDuel(ctx, uuid.New(), "bob", &bogus, nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCancelDuelOnlyAffectsWaitingDuels(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{})
	ctx := context.Background()

	user := uuid.New()
	duel, err := engine.CreateDuel(ctx, user, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	cancelled, err := engine.CancelDuel(ctx, user, &duel.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	reloaded, err := repo.GetDuelByID(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, reloaded.Status)

	cancelledAgain, err := engine.CancelDuel(ctx, user, &duel.ID)
	require.NoError(t, err)
	assert.False(t, cancelledAgain)
}

func TestSubmitCodeFullPassCompletesAndRatesDuel(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{passed: 1, total: 1})
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	_, err := engine.CreateDuel(ctx, userA, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	duel, err := engine.JoinDuel(ctx, userB, "bob", nil, nil)
	require.NoError(t, err)

	result, err := engine.SubmitCode(ctx, duel.ID, userA, "def two_sum(a,b): return [0,1]", "python")
	require.NoError(t, err)
	assert.True(t, result.Won)
	assert.False(t, result.TooLate)

	completed, err := repo.GetDuelByID(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	winner := completed.ParticipantFor(userA)
	require.NotNil(t, winner)
	assert.True(t, winner.IsWinner)
	require.NotNil(t, winner.RatingDelta)
	assert.Greater(t, *winner.RatingDelta, 0)

	winnerRating, err := repo.GetOrCreatePlayerRating(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, 1, winnerRating.Wins)

	snapshots, err := repo.LatestSnapshotsForDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestSubmitCodeSecondWinnerIsTooLate(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{passed: 1, total: 1})
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	_, err := engine.CreateDuel(ctx, userA, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	duel, err := engine.JoinDuel(ctx, userB, "bob", nil, nil)
	require.NoError(t, err)

	first, err := engine.SubmitCode(ctx, duel.ID, userA, "code-a", "python")
	require.NoError(t, err)
	assert.True(t, first.Won)

	second, err := engine.SubmitCode(ctx, duel.ID, userB, "code-b", "python")
	require.NoError(t, err)
	assert.False(t, second.Won)
	assert.True(t, second.TooLate)
}

func TestTestCodeNeverCompletesDuel(t *testing.T) {
	repo := testutil.NewRepository(t)
	seedSolvableProblem(t, repo)
	engine := newTestEngine(t, repo, &stubGrader{passed: 1, total: 1})
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	_, err := engine.CreateDuel(ctx, userA, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	duel, err := engine.JoinDuel(ctx, userB, "bob", nil, nil)
	require.NoError(t, err)

	result, err := engine.TestCode(ctx, duel.ID, userA, "code", "python")
	require.NoError(t, err)
	assert.True(t, result.AllPassed())

	reloaded, err := repo.GetDuelByID(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, reloaded.Status)
	assert.Nil(t, reloaded.Winner())
}
