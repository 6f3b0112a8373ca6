package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeduel/internal/aiopponent"
	"codeduel/internal/antidupe"
	"codeduel/internal/auth"
	"codeduel/internal/config"
	"codeduel/internal/duelengine"
	"codeduel/internal/eventfabric"
	"codeduel/internal/judge"
	"codeduel/internal/models"
	"codeduel/internal/problemgen"
	"codeduel/internal/ratelimit"
	"codeduel/internal/rating"
	"codeduel/internal/repository"
	"codeduel/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGrader struct{}

func (stubGrader) Execute(ctx context.Context, req judge.Request) (*judge.Result, error) {
	return &judge.Result{Passed: 1, Total: 1}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Repository, *duelengine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	repo := testutil.NewRepository(t)
	gen := problemgen.New("", "", nil)
	idx := antidupe.New(repo, gen, antidupe.DefaultConfig())
	ratingSvc := rating.New(repo, 32)
	fabric := eventfabric.New(0)
	ai := aiopponent.New("", "")
	cfg := config.DuelConfig{EloKFactor: 32, SubmissionTimeLimit: 5 * time.Second, SubmissionMemoryMB: 256}
	engine := duelengine.New(repo, idx, stubGrader{}, ratingSvc, fabric, ai, cfg)

	duelHandler := NewDuelHandler(engine, repo, ratelimit.New(0, 0))
	statsHandler := NewStatsHandler(repo)

	router := gin.New()
	protected := router.Group("/duels")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/create", duelHandler.CreateDuel)
		protected.POST("/ai-duel", duelHandler.CreateAIDuel)
		protected.POST("/join", duelHandler.JoinDuel)
		protected.POST("/cancel", duelHandler.CancelDuel)
		protected.GET("/active", duelHandler.GetActiveDuel)
		protected.GET("/active-or-waiting", duelHandler.GetActiveOrWaitingDuel)
		protected.GET("/stats/me", statsHandler.GetMyStats)
		protected.GET("/:id", duelHandler.GetDuel)
		protected.POST("/:id/submit", duelHandler.SubmitCode)
		protected.POST("/:id/test-code", duelHandler.TestCode)
	}

	return router, repo, engine
}

func seedProblem(t *testing.T, repo *repository.Repository) {
	t.Helper()
	p := &models.Problem{
		ID:           uuid.New(),
		Title:        "Two Sum",
		Description:  "desc",
		Difficulty:   models.DifficultyEasy,
		ProblemType:  models.TypeArray,
		Fingerprint:  uuid.New().String(),
		FunctionName: "two_sum",
		TestCases:    []models.TestCase{{Input: "1", ExpectedOutput: "1"}},
	}
	require.NoError(t, repo.CreateProblem(context.Background(), p))
}

func authedRequest(t *testing.T, method, path string, body interface{}, userID uuid.UUID, username string) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, err := auth.GenerateToken(userID, username)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCreateAIDuelReturnsInProgressDuel(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	seedProblem(t, repo)

	user := uuid.New()
	body := map[string]string{"difficulty": string(models.DifficultyEasy), "problemType": string(models.TypeArray)}
	req := authedRequest(t, http.MethodPost, "/duels/ai-duel", body, user, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var duel models.Duel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &duel))
	assert.Equal(t, models.StatusInProgress, duel.Status)
}

func TestCreateDuelRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := map[string]string{
		"mode":        string(models.ModeRandomPlayer),
		"difficulty":  string(models.DifficultyEasy),
		"problemType": string(models.TypeArray),
	}
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/duels/create", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDuelRejectsNonParticipant(t *testing.T) {
	router, repo, engine := newTestRouter(t)
	seedProblem(t, repo)

	host := uuid.New()
	duel, err := engine.CreateDuel(context.Background(), host, "alice", models.ModeAIOpponent, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	stranger := uuid.New()
	req := authedRequest(t, http.MethodGet, "/duels/"+duel.ID.String(), nil, stranger, "mallory")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetActiveDuelReturnsNilWhenNoneActive(t *testing.T) {
	router, _, _ := newTestRouter(t)

	user := uuid.New()
	req := authedRequest(t, http.MethodGet, "/duels/active", nil, user, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["duel"])
}

func TestSubmitCodeCompletesDuelAndUpdatesStats(t *testing.T) {
	router, repo, engine := newTestRouter(t)
	seedProblem(t, repo)

	userA, userB := uuid.New(), uuid.New()
	_, err := engine.CreateDuel(context.Background(), userA, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	duel, err := engine.JoinDuel(context.Background(), userB, "bob", nil, nil)
	require.NoError(t, err)

	body := map[string]string{"code": "def two_sum(): pass", "language": "python"}
	req := authedRequest(t, http.MethodPost, "/duels/"+duel.ID.String()+"/submit", body, userA, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	statsReq := authedRequest(t, http.MethodGet, "/duels/stats/me", nil, userA, "alice")
	statsRec := httptest.NewRecorder()
	router.ServeHTTP(statsRec, statsReq)
	require.Equal(t, http.StatusOK, statsRec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &stats))
	rating := stats["rating"].(map[string]interface{})
	assert.Equal(t, float64(1), rating["wins"])
}
