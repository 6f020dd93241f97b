package gateway

import "encoding/json"

// Inbound event types sent by the browser
const (
	EventAuth    = "auth"
	EventProblem = "problem"
	EventCoach   = "coach"
	EventRun     = "run"
	EventEnded   = "ended"
	EventError   = "error"
)

// Outbound event types sent to the browser
const (
	EventPlay      = "play"
	EventStop      = "stop"
	EventStatus    = "status"
	EventMessage   = "message"
	EventRunResult = "run_result"
)

// InboundMessage is a browser event. Only the fields of its type are set.
type InboundMessage struct {
	Type string `json:"type"`

	// auth
	Authenticated bool   `json:"authenticated,omitempty"`
	Token         string `json:"token,omitempty"`

	// auth, problem
	ProblemTitle string `json:"problem_title,omitempty"`

	// coach
	Text string `json:"text,omitempty"`

	// run
	Code      string            `json:"code,omitempty"`
	Language  string            `json:"language,omitempty"`
	ProblemID string            `json:"problem_id,omitempty"`
	TestCases []json.RawMessage `json:"test_cases,omitempty"`

	// ended, error
	PlaybackID string `json:"playback_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// OutboundMessage is a server event
type OutboundMessage struct {
	Type        string `json:"type"`
	PlaybackID  string `json:"playback_id,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Audio       string `json:"audio,omitempty"` // Base64 encoded
	State       string `json:"state,omitempty"`
	Terminal    string `json:"terminal,omitempty"`
	Message     string `json:"message,omitempty"`
}
