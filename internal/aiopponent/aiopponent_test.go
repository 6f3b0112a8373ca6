package aiopponent

import (
	"context"
	"testing"
	"time"

	"codeduel/internal/eventfabric"
	"codeduel/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProfileForKnownAndUnknownDifficulty(t *testing.T) {
	easy := ProfileFor(models.DifficultyEasy)
	assert.Equal(t, 70, easy.TypingSpeedWPM)

	unknown := ProfileFor(models.Difficulty("NOT_A_DIFFICULTY"))
	assert.Equal(t, ProfileFor(models.DifficultyMedium), unknown)
}

func TestSplitIntoChunksBreaksOnBlankLines(t *testing.T) {
	solution := "def f(n):\n    x = 1\n\n    return x + n\n"
	chunks := splitIntoChunks(solution)
	assert.GreaterOrEqual(t, len(chunks), 1)

	var rebuilt string
	for _, c := range chunks {
		rebuilt += c
	}
	assert.Equal(t, solution, rebuilt)
}

func TestSplitIntoChunksNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, splitIntoChunks(""))
}

func TestTemplateLibrarySubstitutesFunctionName(t *testing.T) {
	lib := defaultTemplateLibrary()
	problem := &models.Problem{ProblemType: models.TypeArray, FunctionName: "two_sum"}
	solution := lib.solutionFor(problem, "python")
	assert.Contains(t, solution, "def two_sum(")
}

func TestRunExitsPromptlyOnCancellation(t *testing.T) {
	fabric := eventfabric.New(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New("", "")
	problem := &models.Problem{ProblemType: models.TypeArray, FunctionName: "two_sum", Title: "t", Description: "d"}

	done := make(chan struct{})
	go func() {
		o.Run(ctx, fabric, uuid.New(), uuid.New(), models.DifficultyEasy, problem, "python")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit promptly after context cancellation")
	}
}
