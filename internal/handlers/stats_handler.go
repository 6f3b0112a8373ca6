package handlers

import (
	"net/http"

	"codeduel/internal/auth"
	"codeduel/internal/repository"

	"github.com/gin-gonic/gin"
)

// StatsHandler exposes the rating, achievement, history and leaderboard
// read surface. No write paths live here; those belong to duelengine.
type StatsHandler struct {
	repo *repository.Repository
}

func NewStatsHandler(repo *repository.Repository) *StatsHandler {
	return &StatsHandler{repo: repo}
}

// GetMyStats handles GET /duels/stats/me.
func (h *StatsHandler) GetMyStats(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rating, err := h.repo.GetOrCreatePlayerRating(c.Request.Context(), userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	achievements, err := h.repo.AchievementsForUser(c.Request.Context(), userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rating":       rating,
		"achievements": achievements,
	})
}

// GetHistory handles GET /duels/history.
func (h *StatsHandler) GetHistory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, err := h.repo.RecentMatchHistory(c.Request.Context(), userID, 50)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetLeaderboard handles both the authenticated GET /duels/leaderboard
// and the public GET /public/duels/leaderboard — the leaderboard itself
// carries no per-caller state, so both routes share this handler.
func (h *StatsHandler) GetLeaderboard(c *gin.Context) {
	ratings, err := h.repo.Leaderboard(c.Request.Context(), 100)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}
