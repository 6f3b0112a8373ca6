package repository

import "gorm.io/gorm/clause"

// onConflictDoNothing makes an insert idempotent against a unique index,
// used where a uniqueness constraint (not an explicit lock) is the
// concurrency guard — e.g. achievement grants and problem-history rows.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
