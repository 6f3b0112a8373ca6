package judge

import (
	"errors"
	"testing"

	"codeduel/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name         string
		expected     string
		actual       string
		setSemantics bool
		want         bool
	}{
		{"exact integers", "4", "4", false, true},
		{"float within tolerance", "0.1", "0.100000000001", false, true},
		{"float outside tolerance", "0.1", "0.2", false, false},
		{"case sensitive strings differ", "Hello", "\"hello\"", false, false},
		{"boolean-like case insensitive", "True", "true", false, true},
		{"ordered arrays must match order", "[1,2,3]", "[3,2,1]", false, false},
		{"set semantics ignores order", "[1,2,3]", "[3,2,1]", true, true},
		{"set semantics rejects different multiset", "[1,2,2]", "[1,1,2]", true, false},
		{"nested arrays exact", "[[1,2],[3,4]]", "[[1,2],[3,4]]", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := valuesEqual(tt.expected, tt.actual, tt.setSemantics)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreOutputsRuntimeError(t *testing.T) {
	req := Request{
		TestCases: []models.TestCase{{Input: "[1,2]", ExpectedOutput: "3"}},
	}
	outputs := []harnessOutput{{Error: "ZeroDivisionError: division by zero"}}

	cases, err := scoreOutputs(req, outputs)
	assert.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.False(t, cases[0].Passed)
	assert.Equal(t, ErrorRuntimeError, cases[0].ErrorType)
}

func TestScoreOutputsMemoryError(t *testing.T) {
	req := Request{
		TestCases: []models.TestCase{{Input: "[1,2]", ExpectedOutput: "3"}},
	}
	outputs := []harnessOutput{{Error: "MemoryError: "}}

	cases, err := scoreOutputs(req, outputs)
	assert.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.False(t, cases[0].Passed)
	assert.Equal(t, ErrorMemoryLimit, cases[0].ErrorType)
}

func TestIsCompileFailure(t *testing.T) {
	tests := []struct {
		name string
		lang Language
		msg  string
		want bool
	}{
		{"javascript syntax error", LanguageJavaScript, "SyntaxError: Unexpected token", true},
		{"javascript runtime error", LanguageJavaScript, "TypeError: x is not a function", false},
		{"python syntax error", LanguagePython, "SyntaxError: invalid syntax", true},
		{"python indentation error", LanguagePython, "IndentationError: unexpected indent", true},
		{"python runtime error", LanguagePython, "ZeroDivisionError: division by zero", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isCompileFailure(tt.lang, errors.New(tt.msg))
			assert.Equal(t, tt.want, got)
		})
	}
}
