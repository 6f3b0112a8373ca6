package repository

import (
	"context"
	"time"

	"codeduel/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProblem inserts a validated problem. The single-writer contract
// is enforced by the caller serializing on fingerprint via
// antidupe.Index, not by this method.
func (r *Repository) CreateProblem(ctx context.Context, p *models.Problem) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) GetProblemByID(ctx context.Context, id uuid.UUID) (*models.Problem, error) {
	var p models.Problem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetProblemByFingerprint(ctx context.Context, fingerprint string) (*models.Problem, error) {
	var p models.Problem
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CandidateProblems returns problems matching difficulty/type whose
// times_used is below maxReuse, oldest-used first, for antidupe.Index to
// filter against each player's recent history.
func (r *Repository) CandidateProblems(ctx context.Context, difficulty models.Difficulty, problemType models.ProblemType, maxReuse int, limit int) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.db.WithContext(ctx).
		Where("difficulty = ? AND problem_type = ? AND times_used < ?", difficulty, problemType, maxReuse).
		Order("last_used_at ASC NULLS FIRST").
		Limit(limit).
		Find(&problems).Error
	return problems, err
}

// MarkProblemUsed bumps times_used/last_used_at. antidupe already
// serializes inserts on the fingerprint, so a plain read-modify-write
// here is safe in practice; we still use an atomic expression to avoid
// lost updates under concurrent duel completions referencing the same
// problem.
func (r *Repository) MarkProblemUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Problem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"times_used":   gorm.Expr("times_used + 1"),
			"last_used_at": usedAt,
		}).Error
}
