package coach

import (
	"encoding/json"
	"fmt"
)

// Analysis is the /analyze response
type Analysis struct {
	ComplexityHint string   `json:"complexity_hint"`
	Structures     []string `json:"structures"`
}

// Coaching is the /coach response
type Coaching struct {
	Message string `json:"message"`
}

// RunRequest is the /run-code request
type RunRequest struct {
	Code      string            `json:"code"`
	Language  string            `json:"language"`
	ProblemID string            `json:"problem_id"`
	TestCases []json.RawMessage `json:"test_cases"`
}

// TestResult is the outcome of a single test case. Input, expected and actual
// values are opaque JSON.
type TestResult struct {
	TestCase json.RawMessage `json:"test_case"`
	Input    json.RawMessage `json:"input"`
	Expected json.RawMessage `json:"expected"`
	Actual   json.RawMessage `json:"actual"`
	Passed   bool            `json:"passed"`
	Error    string          `json:"error,omitempty"`
}

// RunResult is the /run-code response
type RunResult struct {
	Results       []TestResult `json:"results"`
	OverallPassed bool         `json:"overall_passed"`
	ExecutionTime float64      `json:"execution_time"`
}

type analyzeRequest struct {
	Code      string `json:"code"`
	ProblemID string `json:"problem_id"`
}

type coachRequest struct {
	Code     string    `json:"code"`
	Analysis *Analysis `json:"analysis"`
}

// StatusError is a non-success backend response
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
}
