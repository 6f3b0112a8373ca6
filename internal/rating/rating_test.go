package rating

import (
	"context"
	"testing"
	"time"

	"codeduel/internal/models"
	"codeduel/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateHigherRatedWinnerGainsLessThanUnderdog(t *testing.T) {
	favoriteWin, _ := Update(1600, 1200, 32)
	underdogWin, _ := Update(1200, 1600, 32)

	assert.Less(t, favoriteWin-1600, underdogWin-1200)
	assert.Greater(t, underdogWin-1200, 0)
}

func TestUpdateIsZeroSumForEquallyRatedPlayers(t *testing.T) {
	newWinner, newLoser := Update(1200, 1200, 32)
	assert.Equal(t, 16, newWinner-1200)
	assert.Equal(t, -16, newLoser-1200)
}

func TestRankForBoundaries(t *testing.T) {
	assert.Equal(t, models.RankBronzeI, RankFor(0))
	assert.Equal(t, models.RankBronzeII, RankFor(800))
	assert.Equal(t, models.RankSilverI, RankFor(1000))
	assert.Equal(t, models.RankGrandmaster, RankFor(2400))
	assert.Equal(t, models.RankGrandmaster, RankFor(3000))
}

func TestLevelForFlatCurve(t *testing.T) {
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(499))
	assert.Equal(t, 2, LevelFor(500))
	assert.Equal(t, 3, LevelFor(1000))
}

func newCompletedDuel(winnerRef, loserRef uuid.UUID, solveSeconds int, loserIsAI bool, aiDifficulty models.Difficulty) *models.Duel {
	winner := models.Participant{
		ID: uuid.New(), UserRef: &winnerRef, Username: "winner",
		RatingBefore: 1200, IsWinner: true, SolveDurationSeconds: &solveSeconds, JoinedAt: time.Now(),
	}
	loser := models.Participant{
		ID: uuid.New(), Username: "loser", RatingBefore: 1200, JoinedAt: time.Now(),
	}
	if loserIsAI {
		loser.IsAI = true
		loser.AIDifficulty = &aiDifficulty
	} else {
		loser.UserRef = &loserRef
	}
	return &models.Duel{
		ID:           uuid.New(),
		Status:       models.StatusCompleted,
		Participants: []models.Participant{winner, loser},
	}
}

func TestApplyDuelResultUpdatesBothHumanRatings(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := New(repo, 32)
	ctx := context.Background()

	winnerRef, loserRef := uuid.New(), uuid.New()
	duel := newCompletedDuel(winnerRef, loserRef, 90, false, "")

	require.NoError(t, svc.ApplyDuelResult(ctx, duel))

	winnerRating, err := repo.GetOrCreatePlayerRating(ctx, winnerRef)
	require.NoError(t, err)
	assert.Equal(t, 1, winnerRating.Wins)
	assert.Equal(t, 1216, winnerRating.Elo)
	assert.Equal(t, 1, winnerRating.CurrentStreak)
	assert.Equal(t, 100, winnerRating.XP)
	require.NotNil(t, winnerRating.FastestSolveSeconds)
	assert.Equal(t, 90, *winnerRating.FastestSolveSeconds)

	loserRating, err := repo.GetOrCreatePlayerRating(ctx, loserRef)
	require.NoError(t, err)
	assert.Equal(t, 1, loserRating.Losses)
	assert.Equal(t, 1184, loserRating.Elo)
	assert.Equal(t, 0, loserRating.CurrentStreak)
}

func TestApplyDuelResultGrantsFirstVictoryAndSpeedDemonOnce(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := New(repo, 32)
	ctx := context.Background()

	winnerRef, loserRef := uuid.New(), uuid.New()
	duel := newCompletedDuel(winnerRef, loserRef, 20, false, "")
	require.NoError(t, svc.ApplyDuelResult(ctx, duel))

	hasFirst, err := repo.HasAchievement(ctx, winnerRef, models.AchievementFirstVictory)
	require.NoError(t, err)
	assert.True(t, hasFirst)

	hasSpeed, err := repo.HasAchievement(ctx, winnerRef, models.AchievementSpeedDemon)
	require.NoError(t, err)
	assert.True(t, hasSpeed)

	hasQuick, err := repo.HasAchievement(ctx, winnerRef, models.AchievementQuickDraw)
	require.NoError(t, err)
	assert.True(t, hasQuick)

	// A second win must not duplicate FirstVictory (idempotence invariant).
	duel2 := newCompletedDuel(winnerRef, uuid.New(), 500, false, "")
	require.NoError(t, svc.ApplyDuelResult(ctx, duel2))

	stillHasFirst, err := repo.HasAchievement(ctx, winnerRef, models.AchievementFirstVictory)
	require.NoError(t, err)
	assert.True(t, stillHasFirst)

	winnerRating, err := repo.GetOrCreatePlayerRating(ctx, winnerRef)
	require.NoError(t, err)
	assert.Equal(t, 2, winnerRating.Wins)
}

func TestApplyDuelResultAgainstAIUsesFixedRatingAndSkipsAIRow(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := New(repo, 32)
	ctx := context.Background()

	winnerRef := uuid.New()
	duel := newCompletedDuel(winnerRef, models.AIOpponentUserRef, 100, true, models.DifficultyHard)

	require.NoError(t, svc.ApplyDuelResult(ctx, duel))

	winnerRating, err := repo.GetOrCreatePlayerRating(ctx, winnerRef)
	require.NoError(t, err)
	assert.Greater(t, winnerRating.Elo, 1200)

	aiRating, err := repo.GetOrCreatePlayerRating(ctx, models.AIOpponentUserRef)
	require.NoError(t, err)
	assert.Equal(t, 1200, aiRating.Elo, "AI sentinel row must not be touched by ApplyDuelResult")
}

func TestApplyDuelResultNoWinnerIsNoop(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := New(repo, 32)
	ctx := context.Background()

	duel := &models.Duel{ID: uuid.New(), Status: models.StatusCancelled, Participants: []models.Participant{
		{ID: uuid.New(), UserRef: uuidPtr(uuid.New()), Username: "a"},
	}}
	require.NoError(t, svc.ApplyDuelResult(ctx, duel))
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
