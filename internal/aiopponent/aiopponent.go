// Package aiopponent spawns the cooperative task that plays the AI side
// of an AI-mode duel: it "thinks", generates a solution, and streams it
// into the event fabric as a sequence of code_update chunks, then stops
// without ever submitting. The AI never auto-wins; it only pressures
// the human.
//
// The chat-completion call mirrors problemgen's go-openai wiring. The
// chunked-delay streaming loop is a context-aware goroutine that checks
// ctx.Err() at every suspension point and returns promptly on
// cancellation.
package aiopponent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"codeduel/internal/eventfabric"
	"codeduel/internal/models"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Profile is a behavior profile keyed by difficulty.
type Profile struct {
	TypingSpeedWPM   int
	ThinkTimeRange   [2]time.Duration
	ChunkPauseRange  [2]time.Duration
	ReviewPauseRange [2]time.Duration
	TotalThinkRange  [2]time.Duration
}

// profiles keyed by difficulty, with TotalThinkRange spanning roughly
// 15 seconds to 5 minutes, scaled by difficulty.
var profiles = map[models.Difficulty]Profile{
	models.DifficultyEasy: {
		TypingSpeedWPM:   70,
		ThinkTimeRange:   [2]time.Duration{2 * time.Second, 5 * time.Second},
		ChunkPauseRange:  [2]time.Duration{300 * time.Millisecond, 900 * time.Millisecond},
		ReviewPauseRange: [2]time.Duration{2 * time.Second, 5 * time.Second},
		TotalThinkRange:  [2]time.Duration{15 * time.Second, 45 * time.Second},
	},
	models.DifficultyMedium: {
		TypingSpeedWPM:   55,
		ThinkTimeRange:   [2]time.Duration{5 * time.Second, 12 * time.Second},
		ChunkPauseRange:  [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond},
		ReviewPauseRange: [2]time.Duration{3 * time.Second, 8 * time.Second},
		TotalThinkRange:  [2]time.Duration{40 * time.Second, 2 * time.Minute},
	},
	models.DifficultyHard: {
		TypingSpeedWPM:   40,
		ThinkTimeRange:   [2]time.Duration{10 * time.Second, 20 * time.Second},
		ChunkPauseRange:  [2]time.Duration{800 * time.Millisecond, 2 * time.Second},
		ReviewPauseRange: [2]time.Duration{5 * time.Second, 12 * time.Second},
		TotalThinkRange:  [2]time.Duration{90 * time.Second, 3 * time.Minute},
	},
	models.DifficultyExpert: {
		TypingSpeedWPM:   30,
		ThinkTimeRange:   [2]time.Duration{15 * time.Second, 30 * time.Second},
		ChunkPauseRange:  [2]time.Duration{1 * time.Second, 3 * time.Second},
		ReviewPauseRange: [2]time.Duration{8 * time.Second, 20 * time.Second},
		TotalThinkRange:  [2]time.Duration{2 * time.Minute, 5 * time.Minute},
	},
}

// ProfileFor returns the behavior profile for difficulty, defaulting to
// Medium for an unrecognized value.
func ProfileFor(difficulty models.Difficulty) Profile {
	if p, ok := profiles[difficulty]; ok {
		return p
	}
	return profiles[models.DifficultyMedium]
}

// Opponent generates AI solutions, via LLM when configured or a template
// library keyed by problem category otherwise.
type Opponent struct {
	client  *openai.Client
	model   string
	library *templateLibrary
}

func New(apiKey, model string) *Opponent {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Opponent{client: client, model: model, library: defaultTemplateLibrary()}
}

// Run is the cooperative task spawned per AI duel. It
// blocks until the solution has been fully streamed and reviewed, or
// ctx is cancelled (e.g. the duel reached a terminal state).
func (o *Opponent) Run(ctx context.Context, fabric *eventfabric.Fabric, duelRef, aiParticipant uuid.UUID, difficulty models.Difficulty, problem *models.Problem, language string) {
	profile := ProfileFor(difficulty)

	if !sleepCancellable(ctx, randDuration(profile.TotalThinkRange)) {
		return
	}

	solution, err := o.solve(ctx, problem, language)
	if err != nil || ctx.Err() != nil {
		return
	}

	chunks := splitIntoChunks(solution)
	var built strings.Builder
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		built.WriteString(chunk)
		fabric.SendCodeUpdate(duelRef, aiParticipant, eventfabric.CodeUpdateMessage(aiParticipant, built.String(), language, nil))

		if !sleepCancellable(ctx, randDuration(profile.ChunkPauseRange)) {
			return
		}
	}

	fabric.Broadcast(duelRef, eventfabric.CodeUpdateMessage(aiParticipant, solution, language, nil), uuid.Nil)
	sleepCancellable(ctx, randDuration(profile.ReviewPauseRange))
}

// solve generates a solution via the LLM when configured, falling back
// to the template library keyed by problem type otherwise.
func (o *Opponent) solve(ctx context.Context, problem *models.Problem, language string) (string, error) {
	if o.client == nil {
		return o.library.solutionFor(problem, language), nil
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a competent but not flawless competitive programmer. Write a correct, readable solution."},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Problem: %s\n\n%s\n\nWrite the solution in %s as a function named %s. Return only code, no commentary.", problem.Title, problem.Description, language, problem.FunctionName)},
		},
		Temperature: 0.6,
	})
	if err != nil || len(resp.Choices) == 0 {
		return o.library.solutionFor(problem, language), nil
	}
	return stripCodeFences(resp.Choices[0].Message.Content), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```python")
	s = strings.TrimPrefix(s, "```javascript")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// splitIntoChunks breaks solution on logical breakpoints: blank lines,
// end-of-block dedents, or every 100 characters absent either.
func splitIntoChunks(solution string) []string {
	lines := strings.Split(solution, "\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	indent := func(s string) int { return len(s) - len(strings.TrimLeft(s, " \t")) }

	for i, line := range lines {
		current.WriteString(line)
		if i < len(lines)-1 {
			current.WriteString("\n")
		}

		trimmed := strings.TrimSpace(line)
		endOfBlock := i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" && indent(lines[i+1]) < indent(line)
		isBreakpoint := trimmed == "" || endOfBlock || current.Len() >= 100
		if isBreakpoint {
			flush()
		}
	}
	flush()

	if len(chunks) == 0 {
		chunks = []string{solution}
	}
	return chunks
}

func randDuration(r [2]time.Duration) time.Duration {
	if r[1] <= r[0] {
		return r[0]
	}
	span := r[1] - r[0]
	return r[0] + time.Duration(rand.Int63n(int64(span)))
}

// sleepCancellable sleeps for d or returns false early if ctx is done,
// the suspension point every wait in the AI task must honor so a
// cancelled duel stops the task promptly.
func sleepCancellable(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
