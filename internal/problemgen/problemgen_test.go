package problemgen

import (
	"testing"

	"codeduel/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint("Two Sum", "two_sum", "nums,target", "Given an array of integers...")
	b := Fingerprint("  two sum  ", "two_sum", "nums,target", "Given an array of integers...")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFingerprintDiffersOnFunctionName(t *testing.T) {
	a := Fingerprint("Two Sum", "two_sum", "nums,target", "desc")
	b := Fingerprint("Two Sum", "find_pair", "nums,target", "desc")
	assert.NotEqual(t, a, b)
}

func TestCuratedLibraryPickRespectsExclusions(t *testing.T) {
	lib := defaultCuratedLibrary()

	p := lib.pick(models.DifficultyEasy, models.TypeArray, nil)
	assert.NotNil(t, p)
	assert.Equal(t, "Two Sum", p.Title)

	none := lib.pick(models.DifficultyEasy, models.TypeArray, []string{"Two Sum"})
	assert.Nil(t, none)
}

func TestCuratedLibraryPickUnknownCombination(t *testing.T) {
	lib := defaultCuratedLibrary()
	p := lib.pick(models.DifficultyExpert, models.TypeGraph, nil)
	assert.Nil(t, p)
}

func TestToProblemRejectsTooFewCases(t *testing.T) {
	_, err := toProblem(llmProblem{
		Title:        "Tiny",
		FunctionName: "f",
		TestCases:    []llmTestCase{{Input: "1", ExpectedOutput: "1"}},
	}, Request{Difficulty: models.DifficultyEasy, ProblemType: models.TypeArray})
	assert.Error(t, err)
}
