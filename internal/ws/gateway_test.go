package ws

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
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
	"codeduel/internal/rating"
	"codeduel/internal/repository"
	"codeduel/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type stubGrader struct{}

func (stubGrader) Execute(ctx context.Context, req judge.Request) (*judge.Result, error) {
	return &judge.Result{Passed: 1, Total: 1}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *repository.Repository, *duelengine.Engine, *eventfabric.Fabric) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	repo := testutil.NewRepository(t)
	gen := problemgen.New("", "", nil)
	idx := antidupe.New(repo, gen, antidupe.DefaultConfig())
	ratingSvc := rating.New(repo, 32)
	fabric := eventfabric.New(0)
	ai := aiopponent.New("", "")
	cfg := config.DuelConfig{EloKFactor: 32, SubmissionTimeLimit: 5 * time.Second, SubmissionMemoryMB: 256, WSTimeout: 2 * time.Second}
	engine := duelengine.New(repo, idx, stubGrader{}, ratingSvc, fabric, ai, cfg)

	gw := New(repo, fabric, engine, cfg)
	router := gin.New()
	router.GET("/duels/ws/:duelId", gw.Handle)

	return httptest.NewServer(router), repo, engine, fabric
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

func dial(t *testing.T, server *httptest.Server, duelID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + fmt.Sprintf("/duels/ws/%s?token=%s", duelID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandleRejectsUnknownDuel(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	defer server.Close()

	token, err := auth.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	conn := dial(t, server, uuid.New(), token)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, eventfabric.CloseDuelNotFound, closeErr.Code)
}

func TestHandleRejectsNonParticipant(t *testing.T) {
	server, repo, engine, _ := newTestServer(t)
	defer server.Close()
	seedProblem(t, repo)

	host := uuid.New()
	duel, err := engine.CreateDuel(context.Background(), host, "alice", models.ModeRandomPlayer, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	stranger := uuid.New()
	token, err := auth.GenerateToken(stranger, "mallory")
	require.NoError(t, err)

	conn := dial(t, server, duel.ID, token)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, eventfabric.CloseNotParticipant, closeErr.Code)
}

func TestHandleAcceptsParticipantAndSendsDuelState(t *testing.T) {
	server, repo, engine, _ := newTestServer(t)
	defer server.Close()
	seedProblem(t, repo)

	host := uuid.New()
	duel, err := engine.CreateDuel(context.Background(), host, "alice", models.ModeAIOpponent, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)

	token, err := auth.GenerateToken(host, "alice")
	require.NoError(t, err)

	conn := dial(t, server, duel.ID, token)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"duel_state"`)
}
