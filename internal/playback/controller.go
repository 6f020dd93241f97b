package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
)

// ErrBusy is returned by Start when a resource is already playing
var ErrBusy = errors.New("playback: controller is busy")

// State is the controller state
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Player is the media element that actually renders audio.
//
// Play begins playback of res and must eventually call done exactly once
// with nil on natural completion or the playback error. done may be called
// from any goroutine, including synchronously inside Play. Stop halts res if
// it is still playing; a Player may skip done for a stopped resource.
type Player interface {
	Play(res *audio.Resource, done func(error)) error
	Stop(res *audio.Resource)
}

// Controller owns the single currently playing resource
type Controller struct {
	player Player
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	current    *audio.Resource
	onComplete func(error)
}

// NewController creates an idle controller driving player
func NewController(player Player, logger zerolog.Logger) *Controller {
	return &Controller{
		player: player,
		logger: logger.With().Str("component", "playback").Logger(),
		state:  StateIdle,
	}
}

// Start begins playing res. It is only valid while idle and returns ErrBusy
// otherwise. onComplete runs on its own goroutine once playback ends or
// fails, after the controller is back to idle. It is never run for a
// resource removed by ForceStop.
func (c *Controller) Start(res *audio.Resource, onComplete func(error)) error {
	if res == nil {
		return fmt.Errorf("playback: nil resource")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrBusy
	}

	c.state = StatePlaying
	c.current = res
	c.onComplete = onComplete

	id := res.ID
	if err := c.player.Play(res, func(err error) { go c.finish(id, err) }); err != nil {
		c.reset()
		c.teardown(res)
		observability.RecordPlayback("failed")
		c.logger.Warn().Err(err).Str("playback_id", id).Msg("Playback failed to start")
		if onComplete != nil {
			go onComplete(err)
		}
		return fmt.Errorf("playback: %w", err)
	}

	observability.RecordPlayback("started")
	c.logger.Debug().Str("playback_id", id).Str("text", res.Text).Msg("Playback started")
	return nil
}

// finish handles the player's completion signal; stale or repeated signals are ignored
func (c *Controller) finish(id string, err error) {
	c.mu.Lock()
	if c.state != StatePlaying || c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		c.logger.Debug().Str("playback_id", id).Msg("Ignoring stale playback completion")
		return
	}

	res := c.current
	onComplete := c.onComplete
	c.reset()
	c.teardown(res)
	c.mu.Unlock()

	if err != nil {
		observability.RecordPlayback("failed")
		c.logger.Warn().Err(err).Str("playback_id", id).Msg("Playback error")
	} else {
		observability.RecordPlayback("completed")
	}

	if onComplete != nil {
		onComplete(err)
	}
}

// ForceStop stops any active playback without running its completion
// callback. It reports whether something was playing.
func (c *Controller) ForceStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return false
	}

	res := c.current
	c.reset()
	c.teardown(res)

	observability.RecordPlayback("stopped")
	c.logger.Debug().Str("playback_id", res.ID).Msg("Playback force stopped")
	return true
}

// State returns the current controller state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the playing resource, if any
func (c *Controller) Current() (*audio.Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// reset must be called with c.mu held
func (c *Controller) reset() {
	c.state = StateIdle
	c.current = nil
	c.onComplete = nil
}

// teardown pauses, rewinds and releases res. Called with c.mu held.
func (c *Controller) teardown(res *audio.Resource) {
	c.player.Stop(res)
	res.Rewind()
	res.Release()
}
