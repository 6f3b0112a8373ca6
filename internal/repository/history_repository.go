package repository

import (
	"context"
	"time"

	"codeduel/internal/models"

	"github.com/google/uuid"
)

// RecentHistoryFor returns userRef's problem-history rows newer than the
// TTL cutoff, for antidupe.Index's exclusion check.
func (r *Repository) RecentHistoryFor(ctx context.Context, userRef uuid.UUID, since time.Time) ([]models.UserProblemHistory, error) {
	var rows []models.UserProblemHistory
	err := r.db.WithContext(ctx).
		Where("user_ref = ? AND used_at > ?", userRef, since).
		Find(&rows).Error
	return rows, err
}

// RecentProblemRef is one fingerprint a user has seen within the TTL
// window, joined against its problem's title/function name so
// antidupe.Index can hand the generator readable exclusion strings
// instead of raw hashes.
type RecentProblemRef struct {
	Fingerprint  string
	Title        string
	FunctionName string
}

// RecentHistoryWithProblems is RecentHistoryFor joined onto problems, for
// callers that need the human-readable identity behind each fingerprint.
func (r *Repository) RecentHistoryWithProblems(ctx context.Context, userRef uuid.UUID, since time.Time) ([]RecentProblemRef, error) {
	var out []RecentProblemRef
	err := r.db.WithContext(ctx).
		Table("user_problem_history AS h").
		Select("h.fingerprint AS fingerprint, p.title AS title, p.function_name AS function_name").
		Joins("JOIN duel_problems AS p ON p.id = h.problem_ref").
		Where("h.user_ref = ? AND h.used_at > ?", userRef, since).
		Find(&out).Error
	return out, err
}

// RecordProblemHistory idempotently inserts a history row (unique on
// user, problem and duel).
func (r *Repository) RecordProblemHistory(ctx context.Context, row *models.UserProblemHistory) error {
	return r.db.WithContext(ctx).Clauses(onConflictDoNothing()).Create(row).Error
}

func (r *Repository) CreateCodeSnapshot(ctx context.Context, s *models.CodeSnapshot) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repository) LatestSnapshotsForDuel(ctx context.Context, duelRef uuid.UUID) ([]models.CodeSnapshot, error) {
	var all []models.CodeSnapshot
	if err := r.db.WithContext(ctx).
		Where("duel_ref = ?", duelRef).
		Order("timestamp ASC").
		Find(&all).Error; err != nil {
		return nil, err
	}

	latestByUser := make(map[uuid.UUID]models.CodeSnapshot)
	for _, s := range all {
		latestByUser[s.UserRef] = s
	}
	out := make([]models.CodeSnapshot, 0, len(latestByUser))
	for _, s := range latestByUser {
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) CreateMatchHistoryEntry(ctx context.Context, e *models.MatchHistoryEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repository) RecentMatchHistory(ctx context.Context, userRef uuid.UUID, limit int) ([]models.MatchHistoryEntry, error) {
	var rows []models.MatchHistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_ref = ?", userRef).
		Order("played_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
