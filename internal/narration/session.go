package narration

import (
	"github.com/rs/zerolog"
)

// Session pairs an orchestrator with the gate that guards it
type Session struct {
	Gate         *Gate
	Orchestrator *Orchestrator
}

// NewSession wires a gate and an orchestrator together. events may be nil.
func NewSession(synth Synthesizer, ctrl Playback, events Events, logger zerolog.Logger) *Session {
	if events == nil {
		events = NopEvents{}
	}
	gate := NewGate(logger)
	orch := NewOrchestrator(synth, ctrl, logger, WithAuthenticator(gate), WithEvents(events))
	gate.Bind(orch)
	return &Session{Gate: gate, Orchestrator: orch}
}

// Enqueue offers a coaching message for narration
func (s *Session) Enqueue(text string) EnqueueResult {
	return s.Orchestrator.Enqueue(text)
}

// SetAuthenticated forwards an authentication signal to the gate
func (s *Session) SetAuthenticated(authenticated bool) {
	s.Gate.Observe(authenticated)
}

// Close tears the session down; nothing narrates afterwards
func (s *Session) Close() {
	s.Orchestrator.Close()
}
