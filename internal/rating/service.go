package rating

import (
	"context"
	"time"

	"codeduel/internal/models"
	"codeduel/internal/repository"

	"github.com/google/uuid"
)

const (
	winnerXP = 100
	loserXP  = 25

	speedDemonThresholdSeconds = 120
	quickDrawThresholdSeconds  = 30
	winningStreakThreshold     = 5
	undefeatedStreakThreshold  = 10
	comebackUnderdogMargin     = 100
	problemSolverWinMilestone  = 50
	perfectWeekWins            = 7
	perfectWeekWindow          = 7 * 24 * time.Hour
)

// Service applies rating/streak/XP updates and grants achievements
// after a duel resolves with a winner. It is invoked by
// the duel engine once the completing transaction has committed —
// rating rows are not part of the duel row's lock, since invariant 1
// (at most one non-terminal duel per user) already serializes a given
// user's rating updates.
type Service struct {
	repo    *repository.Repository
	kFactor int
}

func New(repo *repository.Repository, kFactor int) *Service {
	return &Service{repo: repo, kFactor: kFactor}
}

// ApplyDuelResult updates ratings for duel's winner and loser (if any)
// and grants any achievements they newly qualify for. A duel with no
// winner (cancelled, timed out, or still in progress) is a no-op.
func (s *Service) ApplyDuelResult(ctx context.Context, duel *models.Duel) error {
	winner := duel.Winner()
	if winner == nil || winner.UserRef == nil {
		return nil
	}
	loser := opponentOf(duel, winner)
	if loser == nil {
		return nil
	}

	winnerRating, err := s.repo.GetOrCreatePlayerRating(ctx, *winner.UserRef)
	if err != nil {
		return err
	}

	var loserRating *models.PlayerRating
	loserElo := AIFixedElo(difficultyOf(loser))
	if !loser.IsAI && loser.UserRef != nil {
		loserRating, err = s.repo.GetOrCreatePlayerRating(ctx, *loser.UserRef)
		if err != nil {
			return err
		}
		loserElo = loserRating.Elo
	}

	newWinnerElo, newLoserElo := Update(winnerRating.Elo, loserElo, s.kFactor)
	winnerEloBefore := winnerRating.Elo
	isUnderdogWin := winnerEloBefore < loserElo-comebackUnderdogMargin

	applyWinnerUpdate(winnerRating, newWinnerElo, winner.SolveDurationSeconds)
	if err := s.repo.SavePlayerRating(ctx, winnerRating); err != nil {
		return err
	}

	if loserRating != nil {
		applyLoserUpdate(loserRating, newLoserElo)
		if err := s.repo.SavePlayerRating(ctx, loserRating); err != nil {
			return err
		}
	}

	return s.grantAchievements(ctx, *winner.UserRef, winnerRating, isUnderdogWin)
}

func applyWinnerUpdate(r *models.PlayerRating, newElo int, solveDuration *int) {
	r.Wins++
	r.TotalDuels++
	r.CurrentStreak = max(1, r.CurrentStreak+1)
	if r.CurrentStreak > r.BestStreak {
		r.BestStreak = r.CurrentStreak
	}
	r.XP += winnerXP
	r.Elo = newElo
	r.Rank = RankFor(newElo)
	r.Level = LevelFor(r.XP)

	if solveDuration != nil {
		seconds := float64(*solveDuration)
		if r.AvgSolveSeconds == nil {
			r.AvgSolveSeconds = &seconds
		} else {
			wins := float64(r.Wins)
			avg := (*r.AvgSolveSeconds*(wins-1) + seconds) / wins
			r.AvgSolveSeconds = &avg
		}
		if r.FastestSolveSeconds == nil || *solveDuration < *r.FastestSolveSeconds {
			fastest := *solveDuration
			r.FastestSolveSeconds = &fastest
		}
	}

	now := time.Now()
	r.LastDuelAt = &now
}

func applyLoserUpdate(r *models.PlayerRating, newElo int) {
	r.Losses++
	r.TotalDuels++
	r.CurrentStreak = 0
	r.XP += loserXP
	r.Elo = newElo
	r.Rank = RankFor(newElo)
	r.Level = LevelFor(r.XP)

	now := time.Now()
	r.LastDuelAt = &now
}

// grantAchievements checks and idempotently grants every achievement
// the winner newly qualifies for.
func (s *Service) grantAchievements(ctx context.Context, userRef uuid.UUID, r *models.PlayerRating, isUnderdogWin bool) error {
	candidates := []models.AchievementType{}

	if r.Wins == 1 {
		candidates = append(candidates, models.AchievementFirstVictory)
	}
	if r.FastestSolveSeconds != nil && *r.FastestSolveSeconds < speedDemonThresholdSeconds {
		candidates = append(candidates, models.AchievementSpeedDemon)
	}
	if r.FastestSolveSeconds != nil && *r.FastestSolveSeconds < quickDrawThresholdSeconds {
		candidates = append(candidates, models.AchievementQuickDraw)
	}
	if r.CurrentStreak >= winningStreakThreshold {
		candidates = append(candidates, models.AchievementWinningStreak)
	}
	if r.CurrentStreak >= undefeatedStreakThreshold {
		candidates = append(candidates, models.AchievementUndefeated)
	}
	if r.Wins >= problemSolverWinMilestone {
		candidates = append(candidates, models.AchievementProblemSolver)
	}
	if isUnderdogWin {
		candidates = append(candidates, models.AchievementComebackKid)
	}

	recentWins, err := s.repo.CountWinningParticipationsSince(ctx, userRef, time.Now().Add(-perfectWeekWindow))
	if err != nil {
		return err
	}
	if recentWins >= perfectWeekWins {
		candidates = append(candidates, models.AchievementPerfectWeek)
	}

	for _, achievement := range candidates {
		granted, err := s.repo.HasAchievement(ctx, userRef, achievement)
		if err != nil {
			return err
		}
		if granted {
			continue
		}
		if err := s.repo.GrantAchievement(ctx, &models.PlayerAchievement{
			ID:        uuid.New(),
			UserRef:   userRef,
			Type:      achievement,
			GrantedAt: time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func opponentOf(duel *models.Duel, p *models.Participant) *models.Participant {
	for i := range duel.Participants {
		if duel.Participants[i].ID != p.ID {
			return &duel.Participants[i]
		}
	}
	return nil
}

func difficultyOf(p *models.Participant) models.Difficulty {
	if p.AIDifficulty != nil {
		return *p.AIDifficulty
	}
	return models.DifficultyMedium
}
