// Package judge executes submitted solutions against test cases in an
// isolated subprocess and reports a per-case verdict.
//
// Wall-clock limits are enforced via context timeouts around
// exec.CommandContext. Memory limits are enforced per language: the
// Python harness prelude calls resource.setrlimit(RLIMIT_AS, ...)
// before the user's code runs, and JavaScript submissions are invoked
// with node's --max-old-space-size V8 heap flag. There is no OS-level
// cgroup/ulimit process wrapper backing either of these.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeduel/internal/metrics"
	"codeduel/internal/models"

	"github.com/google/uuid"
)

// ErrorType is the grading failure taxonomy.
type ErrorType string

const (
	ErrorNone              ErrorType = ""
	ErrorCompileError      ErrorType = "CompileError"
	ErrorRuntimeError      ErrorType = "RuntimeError"
	ErrorTimeLimit         ErrorType = "TimeLimit"
	ErrorMemoryLimit       ErrorType = "MemoryLimit"
	ErrorWrongAnswer       ErrorType = "WrongAnswer"
	ErrorSystemError       ErrorType = "SystemError"
	ErrorSecurityViolation ErrorType = "SecurityViolation"
)

// Language identifies a submission's source language and selects its
// harness template.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
)

// CaseResult is the verdict for a single test case.
type CaseResult struct {
	Category     string    `json:"category,omitempty"`
	Passed       bool      `json:"passed"`
	Hidden       bool      `json:"hidden"`
	Expected     string    `json:"expected,omitempty"`
	Actual       string    `json:"actual,omitempty"`
	ErrorType    ErrorType `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TimeMs       int64     `json:"time_ms"`
}

// Result is the aggregate judging outcome returned to the duel engine.
type Result struct {
	Passed          int          `json:"passed"`
	Failed          int          `json:"failed"`
	Total           int          `json:"total"`
	Cases           []CaseResult `json:"cases"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
	Error           ErrorType    `json:"error,omitempty"`
}

// AllPassed reports whether every case in the result passed.
func (r *Result) AllPassed() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// Request bundles everything the judge needs to grade one submission.
type Request struct {
	Code         string
	Language     Language
	FunctionName string
	TestCases    []models.TestCase
	SetSemantics bool
	TimeLimit    time.Duration
	MemoryMB     int
}

// maxOutputBytes caps the harness's stdout regardless of caller-supplied values.
const maxOutputBytes = 1 << 20 // 1 MB

// Judge executes submissions in a fresh workdir per call.
type Judge struct {
	baseDir string
}

// New constructs a Judge rooted at baseDir (created under os.TempDir if
// empty) for per-submission scratch directories.
func New(baseDir string) *Judge {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "codeduel-judge")
	}
	return &Judge{baseDir: baseDir}
}

// Execute runs req.Code against every test case and returns the
// aggregate Result. It never returns an error for per-case failures,
// those are reported as CaseResult.ErrorType, but does return an error
// for judge-infra failures (SystemError), which the caller should retry
// once rather than score as a wrong answer.
func (j *Judge) Execute(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.JudgeExecutionDuration.WithLabelValues(string(req.Language)).Observe(time.Since(start).Seconds())
		outcome := "error"
		if result != nil {
			outcome = "ok"
			if result.Error != ErrorNone {
				outcome = string(result.Error)
			}
		}
		metrics.JudgeExecutionsTotal.WithLabelValues(string(req.Language), outcome).Inc()
	}()
	return j.execute(ctx, req)
}

func (j *Judge) execute(ctx context.Context, req Request) (*Result, error) {
	if violation := scanForbiddenPatterns(req.Language, req.Code); violation != "" {
		return &Result{
			Total: len(req.TestCases),
			Error: ErrorSecurityViolation,
			Cases: []CaseResult{{
				Passed:       false,
				ErrorType:    ErrorSecurityViolation,
				ErrorMessage: violation,
			}},
		}, nil
	}

	workdir := filepath.Join(j.baseDir, uuid.NewString())
	if err := os.MkdirAll(workdir, 0o700); err != nil {
		return nil, fmt.Errorf("judge: create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	harness, ok := harnessFor(req.Language)
	if !ok {
		return nil, fmt.Errorf("judge: unsupported language %q", req.Language)
	}

	start := time.Now()
	rawResults, runErr := j.runHarness(ctx, workdir, harness, req)
	elapsed := time.Since(start).Milliseconds()

	result := &Result{Total: len(req.TestCases), ExecutionTimeMs: elapsed}

	if runErr != nil {
		switch {
		case runErr == context.DeadlineExceeded || ctx.Err() == context.DeadlineExceeded:
			result.Error = ErrorTimeLimit
			result.Cases = allCasesAs(req.TestCases, ErrorTimeLimit, "execution exceeded the time limit")
		case isMemoryFailure(req.Language, runErr):
			result.Error = ErrorMemoryLimit
			result.Cases = allCasesAs(req.TestCases, ErrorMemoryLimit, runErr.Error())
		case isCompileFailure(req.Language, runErr):
			result.Error = ErrorCompileError
			result.Cases = allCasesAs(req.TestCases, ErrorCompileError, runErr.Error())
		default:
			result.Error = ErrorSystemError
			return result, fmt.Errorf("judge: harness execution failed: %w", runErr)
		}
		result.Failed = result.Total
		return result, nil
	}

	cases, err := scoreOutputs(req, rawResults)
	if err != nil {
		result.Error = ErrorSystemError
		return result, fmt.Errorf("judge: scoring harness output: %w", err)
	}
	result.Cases = cases
	for _, c := range cases {
		if c.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// harnessOutput is one entry of the JSON array the harness prints to
// stdout, one per test case, in input order.
type harnessOutput struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
	TimeMs int64  `json:"time_ms"`
}

func (j *Judge) runHarness(ctx context.Context, workdir string, h harnessTemplate, req Request) ([]harnessOutput, error) {
	timeout := req.TimeLimit
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	// Scale the overall deadline by case count plus a fixed interpreter
	// startup margin. This deadline is the only time limit: the harness
	// driver records each case's elapsed time but does not stop a single
	// slow case, and hitting the deadline marks every case TimeLimit.
	overall := timeout*time.Duration(len(req.TestCases)) + 2*time.Second
	runCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	sourcePath := filepath.Join(workdir, h.filename)
	source := h.build(req)
	if err := os.WriteFile(sourcePath, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write harness source: %w", err)
	}

	inputPath := filepath.Join(workdir, "cases.json")
	inputJSON, err := json.Marshal(req.TestCases)
	if err != nil {
		return nil, fmt.Errorf("marshal test cases: %w", err)
	}
	if err := os.WriteFile(inputPath, inputJSON, 0o600); err != nil {
		return nil, fmt.Errorf("write test cases: %w", err)
	}

	args := append([]string{}, h.flags(req)...)
	args = append(args, sourcePath, inputPath, fmt.Sprintf("%d", req.MemoryMB))

	cmd := exec.CommandContext(runCtx, h.interpreter, args...)
	cmd.Dir = workdir
	cmd.Env = []string{"PATH=/usr/bin:/bin"}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, context.DeadlineExceeded
	}
	if runErr != nil {
		return nil, fmt.Errorf("%s: %s", runErr, stderr.String())
	}
	if stdout.Len() > maxOutputBytes {
		return nil, fmt.Errorf("harness output exceeded %d bytes", maxOutputBytes)
	}

	var outputs []harnessOutput
	if err := json.Unmarshal(stdout.Bytes(), &outputs); err != nil {
		return nil, fmt.Errorf("decode harness output: %w (stderr: %s)", err, stderr.String())
	}
	return outputs, nil
}

func allCasesAs(cases []models.TestCase, errType ErrorType, msg string) []CaseResult {
	out := make([]CaseResult, len(cases))
	for i, tc := range cases {
		out[i] = CaseResult{
			Category:     tc.Category,
			Hidden:       tc.Hidden,
			Passed:       false,
			ErrorType:    errType,
			ErrorMessage: msg,
		}
	}
	return out
}

func isCompileFailure(lang Language, err error) bool {
	msg := err.Error()
	switch lang {
	case LanguageJavaScript:
		return strings.Contains(msg, "SyntaxError")
	case LanguagePython:
		return strings.Contains(msg, "SyntaxError") || strings.Contains(msg, "IndentationError")
	default:
		return false
	}
}

// isMemoryFailure reports whether err is node's V8 heap-exhaustion
// failure from the --max-old-space-size cap in javaScriptFlags. Python
// submissions hit resource.setrlimit instead, which the harness driver
// catches and reports per-case as a MemoryError string (see compare.go),
// not as a process-level runErr.
func isMemoryFailure(lang Language, err error) bool {
	if lang != LanguageJavaScript {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "heap out of memory") || strings.Contains(msg, "Allocation failed")
}
