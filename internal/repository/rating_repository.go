package repository

import (
	"context"
	"time"

	"codeduel/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOrCreatePlayerRating returns the caller's rating row, creating a
// default one (ELO 1200, Silver III, the band rating.RankFor gives 1200)
// on first duel.
func (r *Repository) GetOrCreatePlayerRating(ctx context.Context, userRef uuid.UUID) (*models.PlayerRating, error) {
	var rating models.PlayerRating
	err := r.db.WithContext(ctx).Where("user_ref = ?", userRef).First(&rating).Error
	if err == nil {
		return &rating, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	rating = models.PlayerRating{
		ID:      uuid.New(),
		UserRef: userRef,
		Elo:     1200,
		Rank:    models.RankSilverIII,
		Level:   1,
	}
	if err := r.db.WithContext(ctx).Create(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *Repository) SavePlayerRating(ctx context.Context, rating *models.PlayerRating) error {
	return r.db.WithContext(ctx).Save(rating).Error
}

// Leaderboard returns the top-N ratings by ELO for GET /duels/leaderboard.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.PlayerRating, error) {
	var ratings []models.PlayerRating
	err := r.db.WithContext(ctx).Order("elo DESC").Limit(limit).Find(&ratings).Error
	return ratings, err
}

// HasAchievement checks the idempotence invariant before granting.
func (r *Repository) HasAchievement(ctx context.Context, userRef uuid.UUID, achievement models.AchievementType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlayerAchievement{}).
		Where("user_ref = ? AND type = ?", userRef, achievement).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) GrantAchievement(ctx context.Context, a *models.PlayerAchievement) error {
	return r.db.WithContext(ctx).Clauses(onConflictDoNothing()).Create(a).Error
}

// AchievementsForUser lists every achievement a user has earned, for
// GET /duels/stats/me.
func (r *Repository) AchievementsForUser(ctx context.Context, userRef uuid.UUID) ([]models.PlayerAchievement, error) {
	var achievements []models.PlayerAchievement
	err := r.db.WithContext(ctx).Where("user_ref = ?", userRef).Order("granted_at DESC").Find(&achievements).Error
	return achievements, err
}

// CountWinningParticipationsSince counts the caller's won participant
// rows joined since cutoff, used by the PerfectWeek achievement
// ("7 wins / 7 days").
func (r *Repository) CountWinningParticipationsSince(ctx context.Context, userRef uuid.UUID, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("user_ref = ? AND is_winner = ? AND joined_at >= ?", userRef, true, cutoff).
		Count(&count).Error
	return count, err
}
