package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Coach lines shown or narrated by the review flow
const (
	NeedCodeMessage     = "Hey there! You need to write some code first before I can help you!"
	SignInMessage       = "🕸️ You need to sign in before I can review your code, hero!"
	TangledMessage      = "Oops! Looks like my web got tangled. Try again, hero!"
	ExecutionFailedText = "Error: Failed to execute code. Please check your syntax and try again."
	RunningText         = "Running code...\n"
)

// WelcomeMessage greets the user on a problem
func WelcomeMessage(problemTitle string) string {
	return fmt.Sprintf("Welcome, hero! Ready to tackle %s? Let's swing through it together!", problemTitle)
}

// NewChallengeMessage announces a newly selected problem
func NewChallengeMessage(problemTitle string) string {
	return fmt.Sprintf("New challenge: %s! How will you approach it, hero?", problemTitle)
}

// Backend is the subset of Client used by Reviewer
type Backend interface {
	Analyze(ctx context.Context, code, problemID, token string) (*Analysis, error)
	Coach(ctx context.Context, code string, analysis *Analysis, token string) (*Coaching, error)
	RunCode(ctx context.Context, req RunRequest, token string) (*RunResult, error)
}

// Review is the outcome of reviewing a submission
type Review struct {
	Terminal string     // Text for the terminal panel
	Message  string     // Coaching message to narrate
	Result   *RunResult // Nil unless the code ran
}

// Reviewer runs a submission, then asks for analysis and coaching
type Reviewer struct {
	backend Backend
	logger  zerolog.Logger
}

// NewReviewer creates a reviewer
func NewReviewer(backend Backend, logger zerolog.Logger) *Reviewer {
	return &Reviewer{backend: backend, logger: logger.With().Str("component", "reviewer").Logger()}
}

// Review never fails: backend errors are logged and replaced by fallback text
func (r *Reviewer) Review(ctx context.Context, req RunRequest, token string) Review {
	if strings.TrimSpace(req.Code) == "" {
		return Review{Message: NeedCodeMessage}
	}

	result, err := r.backend.RunCode(ctx, req, token)
	if err != nil {
		return r.failed("run-code", err)
	}
	terminal := FormatTerminal(result)

	analysis, err := r.backend.Analyze(ctx, req.Code, req.ProblemID, token)
	if err != nil {
		return r.failed("analyze", err)
	}

	coaching, err := r.backend.Coach(ctx, req.Code, analysis, token)
	if err != nil {
		return r.failed("coach", err)
	}

	r.logger.Info().
		Str("problem_id", req.ProblemID).
		Bool("overall_passed", result.OverallPassed).
		Int("test_cases", len(result.Results)).
		Msg("Submission reviewed")

	return Review{Terminal: terminal, Message: coaching.Message, Result: result}
}

func (r *Reviewer) failed(step string, err error) Review {
	r.logger.Error().Err(err).Str("step", step).Msg("Error running code")
	return Review{Terminal: ExecutionFailedText, Message: TangledMessage}
}

// FormatTerminal renders run results the way the terminal panel shows them
func FormatTerminal(result *RunResult) string {
	var b strings.Builder
	for _, tc := range result.Results {
		status := "FAILED"
		if tc.Passed {
			status = "PASSED"
		}
		fmt.Fprintf(&b, "Test Case %s: %s\n", formatValue(tc.TestCase), status)
		fmt.Fprintf(&b, "Input: %s\n", formatValue(tc.Input))

		output := formatValue(tc.Actual)
		if output == "" {
			output = "No output"
		}
		fmt.Fprintf(&b, "Output: %s\n", output)
		fmt.Fprintf(&b, "Expected: %s\n", formatValue(tc.Expected))
		if tc.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", tc.Error)
		}
		b.WriteString("\n")
	}

	if result.OverallPassed {
		b.WriteString("All test cases passed! Great job, hero!\n")
	} else {
		b.WriteString("Some test cases failed. Keep debugging, hero!\n")
	}
	fmt.Fprintf(&b, "Execution time: %.3fs\n", result.ExecutionTime)
	return b.String()
}

// formatValue prints strings bare and everything else as compact JSON; null is empty
func formatValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
