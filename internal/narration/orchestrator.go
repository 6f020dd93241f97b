package narration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/playback"
)

// ErrNoAudio is reported for a synthesis that returned neither audio nor an error
var ErrNoAudio = errors.New("narration: synthesizer returned no audio")

// Synthesizer produces a playable resource for a text
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*audio.Resource, error)
}

// Playback is the controller the orchestrator drives
type Playback interface {
	Start(res *audio.Resource, onComplete func(error)) error
	ForceStop() bool
	State() playback.State
}

// Authenticator reports whether narration is currently allowed
type Authenticator interface {
	Authenticated() bool
}

type alwaysAuthenticated struct{}

func (alwaysAuthenticated) Authenticated() bool { return true }

// EnqueueResult is the outcome of Enqueue
type EnqueueResult int

const (
	Accepted EnqueueResult = iota
	RejectedEmpty
	RejectedUnauthenticated
	RejectedDuplicate
	RejectedClosed
)

func (r EnqueueResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedEmpty:
		return "empty"
	case RejectedUnauthenticated:
		return "unauthenticated"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the orchestrator
type Snapshot struct {
	Pending   []string
	Current   string
	Playing   bool
	Preparing string
	Advancing bool
	State     playback.State
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithAuthenticator makes Enqueue and playback start depend on auth
func WithAuthenticator(auth Authenticator) Option {
	return func(o *Orchestrator) { o.auth = auth }
}

// WithEvents registers a lifecycle sink
func WithEvents(events Events) Option {
	return func(o *Orchestrator) { o.events = events }
}

// Orchestrator narrates messages one at a time in arrival order.
//
// At most one message is being synthesized or played at any instant. A
// message whose synthesis fails is skipped. Flush discards everything and
// invalidates any synthesis still in flight, so its result is dropped when
// it arrives.
type Orchestrator struct {
	synth  Synthesizer
	ctrl   Playback
	auth   Authenticator
	events Events
	logger zerolog.Logger

	mu         sync.Mutex
	pending    []string
	current    string
	hasCurrent bool
	preparing  string
	advancing  bool
	epoch      uint64
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
}

// NewOrchestrator creates an orchestrator. Without WithAuthenticator every
// call is treated as authenticated.
func NewOrchestrator(synth Synthesizer, ctrl Playback, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		synth:  synth,
		ctrl:   ctrl,
		auth:   alwaysAuthenticated{},
		events: NopEvents{},
		logger: logger.With().Str("component", "narration").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	return o
}

// Enqueue appends text to the pending queue and advances if idle. A text equal
// to the pending tail, the text being synthesized or the text playing is
// dropped as a duplicate.
func (o *Orchestrator) Enqueue(text string) EnqueueResult {
	text = strings.TrimSpace(text)

	o.mu.Lock()
	result := o.admit(text)
	if result == Accepted {
		o.pending = append(o.pending, text)
	}
	o.mu.Unlock()

	observability.RecordEnqueue(result.String())
	if result != Accepted {
		o.logger.Debug().Str("result", result.String()).Str("text", text).Msg("Message not queued")
		return result
	}

	o.TryAdvance()
	return result
}

// admit must be called with o.mu held
func (o *Orchestrator) admit(text string) EnqueueResult {
	switch {
	case o.closed:
		return RejectedClosed
	case text == "":
		return RejectedEmpty
	case !o.auth.Authenticated():
		return RejectedUnauthenticated
	case len(o.pending) > 0 && o.pending[len(o.pending)-1] == text:
		return RejectedDuplicate
	case o.hasCurrent && o.current == text:
		return RejectedDuplicate
	case o.advancing && o.preparing == text:
		return RejectedDuplicate
	}
	return Accepted
}

// TryAdvance starts preparing the head of the queue unless something is
// already being prepared or played.
func (o *Orchestrator) TryAdvance() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advanceLocked()
}

func (o *Orchestrator) advanceLocked() {
	if o.closed || o.advancing || o.hasCurrent || len(o.pending) == 0 {
		return
	}
	if o.ctrl.State() != playback.StateIdle {
		return
	}

	text := o.pending[0]
	o.pending = o.pending[1:]
	o.advancing = true
	o.preparing = text

	go o.prepare(o.ctx, o.epoch, text)
}

func (o *Orchestrator) prepare(ctx context.Context, epoch uint64, text string) {
	res, err := o.synth.Synthesize(ctx, text)

	o.mu.Lock()
	if o.epoch != epoch || o.closed {
		o.mu.Unlock()
		if res != nil {
			res.Release()
		}
		o.logger.Debug().Str("text", text).Msg("Discarding stale synthesis result")
		return
	}

	o.advancing = false
	o.preparing = ""

	if err == nil && res == nil {
		err = ErrNoAudio
	}
	if err != nil {
		o.mu.Unlock()
		o.logger.Warn().Err(err).Str("text", text).Msg("Synthesis failed, skipping message")
		observability.RecordError("synthesis", "narration")
		o.events.NarrationSkipped(text, err)
		o.TryAdvance()
		return
	}

	if !o.auth.Authenticated() {
		dropped := len(o.pending)
		o.pending = nil
		o.mu.Unlock()
		res.Release()
		o.logger.Info().Str("text", text).Int("dropped", dropped).Msg("Authentication lost before playback, dropping queue")
		o.events.QueueFlushed(dropped + 1)
		return
	}

	o.current = text
	o.hasCurrent = true
	err = o.ctrl.Start(res, func(err error) { o.complete(epoch, text, err) })
	if errors.Is(err, playback.ErrBusy) {
		o.current = ""
		o.hasCurrent = false
		o.mu.Unlock()
		res.Release()
		o.logger.Error().Str("text", text).Msg("Playback controller busy, skipping message")
		o.events.NarrationSkipped(text, err)
		return
	}
	o.mu.Unlock()

	// Other start errors complete asynchronously through the callback
	if err == nil {
		o.events.NarrationStarted(text)
	}
}

func (o *Orchestrator) complete(epoch uint64, text string, err error) {
	o.mu.Lock()
	if o.epoch != epoch || !o.hasCurrent || o.current != text {
		o.mu.Unlock()
		return
	}
	o.current = ""
	o.hasCurrent = false
	o.mu.Unlock()

	o.events.NarrationFinished(text, err)
	o.TryAdvance()
}

// Flush drops every pending message, stops the current playback and
// invalidates in-flight synthesis. It does not advance afterwards.
func (o *Orchestrator) Flush() {
	o.mu.Lock()
	dropped := o.flushLocked()
	o.mu.Unlock()

	observability.RecordFlush(dropped)
	o.events.QueueFlushed(dropped)
}

func (o *Orchestrator) flushLocked() int {
	dropped := len(o.pending)
	if o.advancing {
		dropped++
	}

	o.pending = nil
	o.current = ""
	o.hasCurrent = false
	o.preparing = ""
	o.advancing = false

	o.epoch++
	o.cancel()
	o.ctx, o.cancel = context.WithCancel(context.Background())

	if o.ctrl.ForceStop() {
		dropped++
	}

	o.logger.Debug().Int("dropped", dropped).Uint64("epoch", o.epoch).Msg("Narration flushed")
	return dropped
}

// Close flushes and refuses all further work
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	dropped := o.flushLocked()
	o.closed = true
	o.cancel()
	o.mu.Unlock()

	observability.RecordFlush(dropped)
	o.events.QueueFlushed(dropped)
}

// Snapshot returns a copy of the current queue state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending := make([]string, len(o.pending))
	copy(pending, o.pending)

	return Snapshot{
		Pending:   pending,
		Current:   o.current,
		Playing:   o.hasCurrent,
		Preparing: o.preparing,
		Advancing: o.advancing,
		State:     o.ctrl.State(),
	}
}
