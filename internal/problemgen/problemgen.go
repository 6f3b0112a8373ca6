// Package problemgen produces coding problems (title, description,
// function signature, test cases, reference solution) at a requested
// difficulty, using an LLM call validated by the judge.
//
// The OpenAI wiring uses sashabaranov/go-openai's ChatCompletionRequest
// built with Model/Messages/Temperature, with errors wrapped rather
// than propagated raw.
package problemgen

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codeduel/internal/judge"
	"codeduel/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

const (
	minTestCases    = 5
	minVisibleCases = 2
	minHiddenCases  = 3
	maxGenerateTries = 3
)

// Generator produces validated Problem rows from an LLM, falling back to
// a curated library when generation repeatedly fails.
type Generator struct {
	client  *openai.Client
	model   string
	judge   *judge.Judge
	library *curatedLibrary
}

// New constructs a Generator. apiKey may be empty in environments that
// only exercise the curated fallback (e.g. tests).
func New(apiKey, model string, j *judge.Judge) *Generator {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Generator{client: client, model: model, judge: j, library: defaultCuratedLibrary()}
}

// Request describes the problem to generate.
type Request struct {
	Difficulty  models.Difficulty
	ProblemType models.ProblemType
	// Exclusions lists titles/function-names recently seen by the
	// players in this match, passed by antidupe.Index so regeneration
	// doesn't immediately collide with history.
	Exclusions []string
}

// Generate produces and validates one Problem. It retries the LLM call
// up to maxGenerateTries times; on repeated failure it falls back to the
// curated library, so problem generation never prevents a duel from
// starting.
func (g *Generator) Generate(ctx context.Context, req Request) (*models.Problem, error) {
	if g.client != nil {
		for attempt := 0; attempt < maxGenerateTries; attempt++ {
			problem, err := g.generateOnce(ctx, req)
			if err == nil {
				return problem, nil
			}
		}
	}

	problem := g.library.pick(req.Difficulty, req.ProblemType, req.Exclusions)
	if problem == nil {
		return nil, fmt.Errorf("problemgen: no curated fallback for %s/%s", req.Difficulty, req.ProblemType)
	}
	return problem, nil
}

type llmProblem struct {
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	FunctionName      string            `json:"function_name"`
	StarterCode       map[string]string `json:"starter_code"`
	Constraints       string            `json:"constraints"`
	Hints             []string          `json:"hints"`
	SetSemantics      bool              `json:"set_semantics"`
	ReferenceSolution map[string]string `json:"reference_solution"`
	TestCases         []llmTestCase     `json:"test_cases"`
}

type llmTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
	Category       string `json:"category"`
}

func (g *Generator) generateOnce(ctx context.Context, req Request) (*models.Problem, error) {
	prompt := buildPrompt(req)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: problemAuthorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.8,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("problemgen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("problemgen: empty completion")
	}

	var parsed llmProblem
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("problemgen: decode completion: %w", err)
	}

	problem, err := toProblem(parsed, req)
	if err != nil {
		return nil, err
	}

	if err := g.validate(ctx, problem); err != nil {
		return nil, fmt.Errorf("problemgen: validation failed: %w", err)
	}
	return problem, nil
}

func toProblem(p llmProblem, req Request) (*models.Problem, error) {
	if len(p.TestCases) < minTestCases {
		return nil, fmt.Errorf("fewer than %d test cases", minTestCases)
	}
	visible, hidden := 0, 0
	cases := make([]models.TestCase, len(p.TestCases))
	for i, tc := range p.TestCases {
		cases[i] = models.TestCase{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Hidden:         tc.Hidden,
			Category:       tc.Category,
		}
		if tc.Hidden {
			hidden++
		} else {
			visible++
		}
	}
	if visible < minVisibleCases || hidden < minHiddenCases {
		return nil, fmt.Errorf("need >= %d visible and >= %d hidden cases, got %d/%d", minVisibleCases, minHiddenCases, visible, hidden)
	}

	problem := &models.Problem{
		Title:             p.Title,
		Description:       p.Description,
		Difficulty:        req.Difficulty,
		ProblemType:       req.ProblemType,
		FunctionName:      p.FunctionName,
		StarterCode:       models.JSONMap(p.StarterCode),
		TestCases:         cases,
		Constraints:       p.Constraints,
		Hints:             p.Hints,
		ReferenceSolution: models.JSONMap(p.ReferenceSolution),
		SetSemantics:      p.SetSemantics,
	}
	problem.Fingerprint = Fingerprint(problem.Title, problem.FunctionName, starterSignature(problem.StarterCode), problem.Description)
	return problem, nil
}

// validate executes the reference solution through the same sandbox the
// judge uses, against the proposed test cases; any mismatch fails validation.
func (g *Generator) validate(ctx context.Context, p *models.Problem) error {
	if g.judge == nil {
		return nil
	}
	refCode, ok := p.ReferenceSolution["python"]
	if !ok {
		return fmt.Errorf("no python reference solution to validate against")
	}

	result, err := g.judge.Execute(ctx, judge.Request{
		Code:         refCode,
		Language:     judge.LanguagePython,
		FunctionName: p.FunctionName,
		TestCases:    p.TestCases,
		SetSemantics: p.SetSemantics,
		TimeLimit:    5 * time.Second,
		MemoryMB:     256,
	})
	if err != nil {
		return err
	}
	if !result.AllPassed() {
		return fmt.Errorf("reference solution failed %d/%d cases", result.Failed, result.Total)
	}
	return nil
}

// Fingerprint computes the deterministic md5 over (normalized title,
// function name, parameter signature, first 100 chars of description).
func Fingerprint(title, functionName, paramSignature, description string) string {
	normalizedTitle := strings.ToLower(strings.TrimSpace(title))
	desc := description
	if len(desc) > 100 {
		desc = desc[:100]
	}
	h := md5.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", normalizedTitle, functionName, paramSignature, desc)
	return hex.EncodeToString(h.Sum(nil))
}

// starterSignature derives a stable parameter-signature string from the
// starter code map, keyed by language, for use in Fingerprint.
func starterSignature(starter models.JSONMap) string {
	if code, ok := starter["python"]; ok {
		return extractSignature(code)
	}
	for _, code := range starter {
		return extractSignature(code)
	}
	return ""
}

func extractSignature(code string) string {
	start := strings.Index(code, "(")
	end := strings.Index(code, ")")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return strings.Join(strings.Fields(code[start+1:end]), "")
}

const problemAuthorSystemPrompt = `You are a coding-challenge author for a competitive programming duel platform. ` +
	`Respond with a single JSON object matching the requested schema exactly. Never include markdown fences or commentary outside the JSON.`

func buildPrompt(req Request) string {
	var exclusions string
	if len(req.Exclusions) > 0 {
		exclusions = "Avoid these titles/function names (already used by these players recently): " + strings.Join(req.Exclusions, ", ") + "."
	}
	return fmt.Sprintf(
		`Generate an original %s difficulty %s problem. %s
Return JSON with keys: title, description, function_name, starter_code (map of language to starter snippet, at least "python"),
constraints, hints (array of strings), set_semantics (bool, true only if output order is irrelevant),
reference_solution (map of language to a correct solution, at least "python"),
test_cases (array of {input, expected_output, hidden, category} where category is one of normal/empty/single/large/edge,
with at least %d entries, at least %d visible (hidden=false) and %d hidden).
Input and expected_output must be JSON-encoded strings.`,
		req.Difficulty, req.ProblemType, exclusions, minTestCases, minVisibleCases, minHiddenCases,
	)
}
