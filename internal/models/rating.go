package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerRank is a labeled ELO interval.
type PlayerRank string

const (
	RankBronzeI      PlayerRank = "BRONZE_I"
	RankBronzeII     PlayerRank = "BRONZE_II"
	RankBronzeIII    PlayerRank = "BRONZE_III"
	RankSilverI      PlayerRank = "SILVER_I"
	RankSilverII     PlayerRank = "SILVER_II"
	RankSilverIII    PlayerRank = "SILVER_III"
	RankGoldI        PlayerRank = "GOLD_I"
	RankGoldII       PlayerRank = "GOLD_II"
	RankGoldIII      PlayerRank = "GOLD_III"
	RankPlatinumI    PlayerRank = "PLATINUM_I"
	RankPlatinumII   PlayerRank = "PLATINUM_II"
	RankPlatinumIII  PlayerRank = "PLATINUM_III"
	RankDiamond      PlayerRank = "DIAMOND"
	RankMaster       PlayerRank = "MASTER"
	RankGrandmaster  PlayerRank = "GRANDMASTER"
)

// AchievementType enumerates the achievements a player can unlock.
type AchievementType string

const (
	AchievementFirstVictory   AchievementType = "FIRST_VICTORY"
	AchievementSpeedDemon     AchievementType = "SPEED_DEMON"
	AchievementWinningStreak  AchievementType = "WINNING_STREAK"
	AchievementPerfectWeek    AchievementType = "PERFECT_WEEK"
	AchievementComebackKid    AchievementType = "COMEBACK_KID"
	AchievementProblemSolver  AchievementType = "PROBLEM_SOLVER"
	AchievementQuickDraw      AchievementType = "QUICK_DRAW"
	AchievementUndefeated     AchievementType = "UNDEFEATED"
)

// PlayerRating is the ELO/stat aggregate for one user.
type PlayerRating struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserRef uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_ref"`

	Elo  int        `gorm:"not null;default:1200;index" json:"elo"`
	Rank PlayerRank `gorm:"size:20;not null;default:BRONZE_I" json:"rank"`

	Wins       int `gorm:"not null;default:0" json:"wins"`
	Losses     int `gorm:"not null;default:0" json:"losses"`
	Draws      int `gorm:"not null;default:0" json:"draws"`
	TotalDuels int `gorm:"not null;default:0" json:"total_duels"`

	CurrentStreak int `gorm:"not null;default:0" json:"current_streak"`
	BestStreak    int `gorm:"not null;default:0" json:"best_streak"`

	AvgSolveSeconds     *float64 `json:"avg_solve_seconds"`
	FastestSolveSeconds *int     `json:"fastest_solve_seconds"`

	XP    int `gorm:"not null;default:0" json:"xp"`
	Level int `gorm:"not null;default:1" json:"level"`

	LastDuelAt *time.Time `json:"last_duel_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	CreatedAt  time.Time  `json:"created_at"`

	Achievements []PlayerAchievement `gorm:"foreignKey:UserRef;references:UserRef;constraint:OnDelete:CASCADE" json:"achievements"`
}

func (PlayerRating) TableName() string { return "player_ratings" }

// WinRate returns the fraction of duels won, or 0 if none played.
func (p *PlayerRating) WinRate() float64 {
	if p.TotalDuels == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.TotalDuels)
}

// PlayerAchievement records a one-time grant; unique on (UserRef, Type)
// makes granting idempotent.
type PlayerAchievement struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserRef   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_achievement_unique" json:"user_ref"`
	Type      AchievementType `gorm:"size:30;not null;uniqueIndex:idx_achievement_unique" json:"type"`
	GrantedAt time.Time       `gorm:"not null" json:"granted_at"`
}

func (PlayerAchievement) TableName() string { return "player_achievements" }
