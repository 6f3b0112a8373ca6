package handlers

import (
	"errors"
	"net/http"

	"codeduel/internal/auth"
	"codeduel/internal/duelengine"
	"codeduel/internal/models"
	"codeduel/internal/ratelimit"
	"codeduel/internal/repository"
	"codeduel/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DuelHandler exposes the duel REST surface over the duel engine.
type DuelHandler struct {
	engine  *duelengine.Engine
	repo    *repository.Repository
	limiter *ratelimit.Limiter
}

func NewDuelHandler(engine *duelengine.Engine, repo *repository.Repository, limiter *ratelimit.Limiter) *DuelHandler {
	return &DuelHandler{engine: engine, repo: repo, limiter: limiter}
}

// GetDuel handles GET /duels/:id, restricted to participants.
func (h *DuelHandler) GetDuel(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	duelID, ok := pathDuelID(c)
	if !ok {
		return
	}

	duel, err := h.repo.GetDuelByID(c.Request.Context(), duelID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if duel.ParticipantFor(userID) == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this duel"})
		return
	}
	c.JSON(http.StatusOK, duel)
}

// GetActiveDuel handles GET /duels/active (InProgress only).
func (h *DuelHandler) GetActiveDuel(c *gin.Context) {
	h.getActive(c, false)
}

// GetActiveOrWaitingDuel handles GET /duels/active-or-waiting, used by
// clients reconnecting after a dropped connection.
func (h *DuelHandler) GetActiveOrWaitingDuel(c *gin.Context) {
	h.getActive(c, true)
}

func (h *DuelHandler) getActive(c *gin.Context, includeWaiting bool) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	duel, err := h.repo.ActiveDuelForUser(c.Request.Context(), userID, includeWaiting)
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusOK, gin.H{"duel": nil})
		return
	}
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, duel)
}

type createDuelRequest struct {
	Mode        models.DuelMode    `json:"mode" binding:"required"`
	Difficulty  models.Difficulty  `json:"difficulty" binding:"required"`
	ProblemType models.ProblemType `json:"problemType" binding:"required"`
}

// CreateDuel handles POST /duels/create.
func (h *DuelHandler) CreateDuel(c *gin.Context) {
	userID, username, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req createDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duel, err := h.engine.CreateDuel(c.Request.Context(), userID, username, req.Mode, req.Difficulty, req.ProblemType)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, duel)
}

// CreateAIDuel handles POST /duels/ai-duel, the AI-opponent shortcut.
// It's CreateDuel with a fixed mode, kept as its own route so the client
// need not set `mode` itself.
func (h *DuelHandler) CreateAIDuel(c *gin.Context) {
	userID, username, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req struct {
		Difficulty  models.Difficulty  `json:"difficulty" binding:"required"`
		ProblemType models.ProblemType `json:"problemType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duel, err := h.engine.CreateDuel(c.Request.Context(), userID, username, models.ModeAIOpponent, req.Difficulty, req.ProblemType)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, duel)
}

type joinDuelRequest struct {
	RoomCode   *string            `json:"roomCode,omitempty"`
	Difficulty *models.Difficulty `json:"difficulty,omitempty"`
}

// JoinDuel handles POST /duels/join.
func (h *DuelHandler) JoinDuel(c *gin.Context) {
	userID, username, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req joinDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duel, err := h.engine.JoinDuel(c.Request.Context(), userID, username, req.RoomCode, req.Difficulty)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if duel == nil {
		c.JSON(http.StatusOK, gin.H{"duel": nil, "waiting": true})
		return
	}
	c.JSON(http.StatusOK, duel)
}

// CancelDuel handles POST /duels/cancel.
func (h *DuelHandler) CancelDuel(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req struct {
		DuelID *uuid.UUID `json:"duelId,omitempty"`
	}
	_ = c.ShouldBindJSON(&req)

	cancelled, err := h.engine.CancelDuel(c.Request.Context(), userID, req.DuelID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

type submitCodeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

// SubmitCode handles POST /duels/:id/submit.
func (h *DuelHandler) SubmitCode(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	duelID, ok := pathDuelID(c)
	if !ok {
		return
	}

	if !h.limiter.Allow(userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "submission rate limit exceeded"})
		return
	}

	var req submitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.SubmitCode(c.Request.Context(), duelID, userID, req.Code, req.Language)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TestCode handles POST /duels/:id/test-code.
func (h *DuelHandler) TestCode(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	duelID, ok := pathDuelID(c)
	if !ok {
		return
	}

	if !h.limiter.Allow(userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "submission rate limit exceeded"})
		return
	}

	var req submitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.TestCode(c.Request.Context(), duelID, userID, req.Code, req.Language)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func pathDuelID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return uuid.Nil, false
	}
	return id, true
}

// callerIdentity resolves the authenticated caller's ID and display
// name. Tokens issued without a username (the JWT claim is optional)
// fall back to a generated guest nickname rather than showing blank
// opponent names in the event fabric and match history.
func callerIdentity(c *gin.Context) (uuid.UUID, string, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.UUID{}, "", false
	}
	username, _ := auth.GetUsername(c)
	if username == "" {
		if guest, err := utils.GenerateNickname(); err == nil {
			username = guest
		} else {
			username = "Guest"
		}
	}
	return userID, username, true
}

// writeEngineError maps duelengine's sentinel errors onto the REST
// client/conflict error surface; anything unrecognized is treated as
// an infrastructure error and surfaces as 5xx.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, duelengine.ErrNotParticipant), errors.Is(err, duelengine.ErrDuelNotFound), errors.Is(err, duelengine.ErrRoomNotFound), errors.Is(err, duelengine.ErrRoomCodeRequired):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, duelengine.ErrAlreadyActive), errors.Is(err, duelengine.ErrNotWaiting), errors.Is(err, duelengine.ErrNotInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
