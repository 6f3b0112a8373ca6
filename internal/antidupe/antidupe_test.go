package antidupe

import (
	"context"
	"testing"
	"time"

	"codeduel/internal/models"
	"codeduel/internal/problemgen"
	"codeduel/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProblem(t *testing.T, repo interface {
	CreateProblem(ctx context.Context, p *models.Problem) error
}, fingerprint string) *models.Problem {
	t.Helper()
	p := &models.Problem{
		ID:           uuid.New(),
		Title:        "Seeded Problem " + fingerprint,
		Description:  "desc",
		Difficulty:   models.DifficultyEasy,
		ProblemType:  models.TypeArray,
		Fingerprint:  fingerprint,
		FunctionName: "solve",
		TestCases:    []models.TestCase{{Input: "1", ExpectedOutput: "1"}},
	}
	require.NoError(t, repo.CreateProblem(context.Background(), p))
	return p
}

func TestSelectReturnsUnplayedCachedProblem(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()

	seedProblem(t, repo, "fp-1")

	gen := problemgen.New("", "", nil)
	idx := New(repo, gen, DefaultConfig())

	user := uuid.New()
	problem, err := idx.Select(ctx, []uuid.UUID{user}, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, "fp-1", problem.Fingerprint)
}

func TestSelectSkipsRecentlyPlayedProblem(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()

	seedProblem(t, repo, "fp-played")
	seedProblem(t, repo, "fp-fresh")

	user := uuid.New()
	require.NoError(t, repo.RecordProblemHistory(ctx, &models.UserProblemHistory{
		ID:          uuid.New(),
		UserRef:     user,
		ProblemRef:  uuid.New(),
		DuelRef:     uuid.New(),
		Fingerprint: "fp-played",
		UsedAt:      time.Now(),
	}))

	gen := problemgen.New("", "", nil)
	idx := New(repo, gen, DefaultConfig())

	problem, err := idx.Select(ctx, []uuid.UUID{user}, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, "fp-fresh", problem.Fingerprint)
}

func TestSelectFallsBackToCuratedLibraryWhenNoCandidates(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()

	gen := problemgen.New("", "", nil)
	idx := New(repo, gen, DefaultConfig())

	user := uuid.New()
	problem, err := idx.Select(ctx, []uuid.UUID{user}, models.DifficultyEasy, models.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", problem.Title)
}
