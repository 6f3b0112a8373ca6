package judge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const floatTolerance = 1e-9

// scoreOutputs pairs each harness output with its test case and applies
// the comparison semantics below.
func scoreOutputs(req Request, outputs []harnessOutput) ([]CaseResult, error) {
	if len(outputs) != len(req.TestCases) {
		return nil, fmt.Errorf("harness returned %d results for %d cases", len(outputs), len(req.TestCases))
	}

	cases := make([]CaseResult, len(req.TestCases))
	for i, tc := range req.TestCases {
		out := outputs[i]
		cr := CaseResult{
			Category: tc.Category,
			Hidden:   tc.Hidden,
			Actual:   out.Output,
			Expected: tc.ExpectedOutput,
			TimeMs:   out.TimeMs,
		}

		if out.Error != "" {
			cr.Passed = false
			if strings.HasPrefix(out.Error, "MemoryError") {
				cr.ErrorType = ErrorMemoryLimit
			} else {
				cr.ErrorType = ErrorRuntimeError
			}
			cr.ErrorMessage = out.Error
			cases[i] = cr
			continue
		}

		match, err := valuesEqual(tc.ExpectedOutput, out.Output, req.SetSemantics)
		if err != nil {
			cr.Passed = false
			cr.ErrorType = ErrorRuntimeError
			cr.ErrorMessage = err.Error()
			cases[i] = cr
			continue
		}

		cr.Passed = match
		if !match {
			cr.ErrorType = ErrorWrongAnswer
		}
		cases[i] = cr
	}
	return cases, nil
}

// valuesEqual compares two JSON-encoded values: exact match; 1e-9
// tolerance for floats; order-insensitive only under set semantics;
// strings compared case-sensitively unless boolean-like.
func valuesEqual(expectedJSON, actualJSON string, setSemantics bool) (bool, error) {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		// Not valid JSON — fall back to raw string comparison so hand
		// authored expected outputs (e.g. "hello") still work.
		expected = expectedJSON
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return false, fmt.Errorf("actual output is not valid JSON: %w", err)
	}

	return deepEqual(expected, actual, setSemantics), nil
}

func deepEqual(expected, actual interface{}, setSemantics bool) bool {
	switch e := expected.(type) {
	case float64:
		a, ok := actual.(float64)
		if !ok {
			return false
		}
		return math.Abs(e-a) <= floatTolerance
	case string:
		switch a := actual.(type) {
		case string:
			return stringsEqual(e, a)
		case bool:
			// A hand-authored "True" against the harness's JSON true.
			return stringsEqual(e, strconv.FormatBool(a))
		default:
			return false
		}
	case bool:
		a, ok := actual.(bool)
		if !ok {
			return false
		}
		return e == a
	case nil:
		return actual == nil
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		if setSemantics {
			return multisetEqual(e, a)
		}
		for i := range e {
			if !deepEqual(e[i], a[i], setSemantics) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, present := a[k]
			if !present || !deepEqual(ev, av, setSemantics) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// stringsEqual applies case-sensitive comparison, except for
// boolean-like tokens ("true"/"True"/"false"/"False") which compare
// case-insensitively.
func stringsEqual(expected, actual string) bool {
	if isBooleanLike(expected) && isBooleanLike(actual) {
		return strings.EqualFold(expected, actual)
	}
	return expected == actual
}

func isBooleanLike(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	default:
		return false
	}
}

// multisetEqual compares two JSON arrays ignoring order, per problems
// whose models.Problem.SetSemantics flag is set.
func multisetEqual(expected, actual []interface{}) bool {
	remaining := make([]interface{}, len(actual))
	copy(remaining, actual)

	for _, ev := range expected {
		idx := -1
		for i, av := range remaining {
			if deepEqual(ev, av, false) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return false
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return len(remaining) == 0
}

