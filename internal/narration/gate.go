package narration

import (
	"sync"

	"github.com/rs/zerolog"
)

// Flusher is flushed when authentication is lost
type Flusher interface {
	Flush()
}

// Gate tracks the externally driven authentication state. A transition to
// unauthenticated, including the first observation, flushes the bound target.
type Gate struct {
	logger zerolog.Logger

	mu            sync.Mutex
	observed      bool
	authenticated bool
	target        Flusher
}

// NewGate creates a gate that starts unauthenticated
func NewGate(logger zerolog.Logger) *Gate {
	return &Gate{logger: logger.With().Str("component", "session_gate").Logger()}
}

// Bind sets the target flushed on logout
func (g *Gate) Bind(target Flusher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = target
}

// Observe records the latest authentication signal
func (g *Gate) Observe(authenticated bool) {
	g.mu.Lock()
	first := !g.observed
	was := g.authenticated
	g.observed = true
	g.authenticated = authenticated
	target := g.target
	g.mu.Unlock()

	if authenticated {
		if !was {
			g.logger.Info().Msg("Session authenticated")
		}
		return
	}
	if first || was {
		g.logger.Info().Bool("initial", first).Msg("Session unauthenticated, flushing narration")
		if target != nil {
			target.Flush()
		}
	}
}

// Authenticated reports the last observed state
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}
