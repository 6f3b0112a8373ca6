package problemgen

import (
	"strings"

	"codeduel/internal/models"

	"github.com/google/uuid"
)

// curatedLibrary is the hand-authored fallback used when LLM generation
// fails repeatedly.
type curatedLibrary struct {
	problems []models.Problem
}

func defaultCuratedLibrary() *curatedLibrary {
	return &curatedLibrary{problems: []models.Problem{
		{
			Title:        "Two Sum",
			Description:  "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target.",
			Difficulty:   models.DifficultyEasy,
			ProblemType:  models.TypeArray,
			FunctionName: "two_sum",
			StarterCode:  models.JSONMap{"python": "def two_sum(nums, target):\n    pass\n"},
			ReferenceSolution: models.JSONMap{"python": "def two_sum(nums, target):\n    seen = {}\n    for i, n in enumerate(nums):\n        if target - n in seen:\n            return [seen[target - n], i]\n        seen[n] = i\n    return []\n"},
			Constraints: "2 <= len(nums) <= 1000",
			Hints:       []string{"Use a hash map to remember complements you've already seen."},
			TestCases: []models.TestCase{
				{Input: "[[2,7,11,15],9]", ExpectedOutput: "[0,1]", Category: "normal"},
				{Input: "[[3,2,4],6]", ExpectedOutput: "[1,2]", Category: "normal"},
				{Input: "[[3,3],6]", ExpectedOutput: "[0,1]", Hidden: true, Category: "edge"},
				{Input: "[[1,2,3,4,5],9]", ExpectedOutput: "[3,4]", Hidden: true, Category: "large"},
				{Input: "[[0,4,3,0],0]", ExpectedOutput: "[0,3]", Hidden: true, Category: "single"},
			},
		},
		{
			Title:        "Valid Parentheses",
			Description:  "Given a string containing just the characters '(', ')', '{', '}', '[' and ']', determine if the input string is valid.",
			Difficulty:   models.DifficultyEasy,
			ProblemType:  models.TypeString,
			FunctionName: "is_valid",
			StarterCode:  models.JSONMap{"python": "def is_valid(s):\n    pass\n"},
			ReferenceSolution: models.JSONMap{"python": "def is_valid(s):\n    pairs = {')': '(', ']': '[', '}': '{'}\n    stack = []\n    for c in s:\n        if c in pairs:\n            if not stack or stack.pop() != pairs[c]:\n                return False\n        else:\n            stack.append(c)\n    return not stack\n"},
			Constraints: "1 <= len(s) <= 10000",
			Hints:       []string{"A stack tracks the most recent unmatched opening bracket."},
			TestCases: []models.TestCase{
				{Input: `"()"`, ExpectedOutput: "true", Category: "normal"},
				{Input: `"()[]{}"`, ExpectedOutput: "true", Category: "normal"},
				{Input: `"(]"`, ExpectedOutput: "false", Hidden: true, Category: "edge"},
				{Input: `""`, ExpectedOutput: "true", Hidden: true, Category: "empty"},
				{Input: `"((((((((()))))))))"`, ExpectedOutput: "true", Hidden: true, Category: "large"},
			},
		},
		{
			Title:        "Binary Tree Maximum Depth",
			Description:  "Given the root of a binary tree encoded as a nested list [value, left, right] (null for missing children), return its maximum depth.",
			Difficulty:   models.DifficultyMedium,
			ProblemType:  models.TypeTree,
			FunctionName: "max_depth",
			StarterCode:  models.JSONMap{"python": "def max_depth(root):\n    pass\n"},
			ReferenceSolution: models.JSONMap{"python": "def max_depth(root):\n    if root is None:\n        return 0\n    _, left, right = root\n    return 1 + max(max_depth(left), max_depth(right))\n"},
			Constraints: "0 <= number of nodes <= 10000",
			Hints:       []string{"Recurse on both children and take the larger depth."},
			TestCases: []models.TestCase{
				{Input: "[3,[9,null,null],[20,[15,null,null],[7,null,null]]]", ExpectedOutput: "3", Category: "normal"},
				{Input: "[1,null,[2,null,null]]", ExpectedOutput: "2", Category: "normal"},
				{Input: "null", ExpectedOutput: "0", Hidden: true, Category: "empty"},
				{Input: "[1,null,null]", ExpectedOutput: "1", Hidden: true, Category: "single"},
				{Input: "[1,[2,[3,[4,null,null],null],null],null]", ExpectedOutput: "4", Hidden: true, Category: "large"},
			},
		},
	}}
}

// pick returns a problem of the requested difficulty/type not present in
// exclusions (matched case-insensitively against title or function
// name), or nil if none qualify.
func (l *curatedLibrary) pick(difficulty models.Difficulty, problemType models.ProblemType, exclusions []string) *models.Problem {
	excluded := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		excluded[strings.ToLower(e)] = true
	}

	for i := range l.problems {
		p := l.problems[i]
		if p.Difficulty != difficulty || p.ProblemType != problemType {
			continue
		}
		if excluded[strings.ToLower(p.Title)] || excluded[strings.ToLower(p.FunctionName)] {
			continue
		}
		clone := p
		clone.ID = uuid.New()
		clone.Fingerprint = Fingerprint(clone.Title, clone.FunctionName, starterSignature(clone.StarterCode), clone.Description)
		return &clone
	}
	return nil
}
