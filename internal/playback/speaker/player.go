//go:build cgo

package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	beepspeaker "github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
)

// Player plays mp3 resources on the local audio device.
// It satisfies playback.Player.
type Player struct {
	logger zerolog.Logger

	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
	active      *speakerPlayback
}

type speakerPlayback struct {
	id       string
	ctrl     *beep.Ctrl
	streamer beep.StreamSeekCloser
	stopped  bool
}

// NewPlayer creates a player. The speaker is initialized lazily from
// the first decoded clip's sample rate.
func NewPlayer(logger zerolog.Logger) *Player {
	return &Player{
		logger: logger.With().Str("component", "speaker").Logger(),
	}
}

func (p *Player) Play(res *audio.Resource, done func(error)) error {
	streamer, format, err := mp3.Decode(res)
	if err != nil {
		return fmt.Errorf("failed to decode mp3: %w", err)
	}

	p.mu.Lock()
	if !p.initialized {
		if err := beepspeaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			p.mu.Unlock()
			streamer.Close()
			return fmt.Errorf("failed to initialize speaker: %w", err)
		}
		p.initialized = true
		p.sampleRate = format.SampleRate
	}

	var source beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		source = beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	}

	pb := &speakerPlayback{
		id:       res.ID,
		ctrl:     &beep.Ctrl{Streamer: source, Paused: false},
		streamer: streamer,
	}
	p.active = pb
	p.mu.Unlock()

	beepspeaker.Play(beep.Seq(pb.ctrl, beep.Callback(func() {
		p.mu.Lock()
		stopped := pb.stopped
		if p.active == pb {
			p.active = nil
		}
		p.mu.Unlock()

		streamErr := pb.streamer.Err()
		pb.streamer.Close()
		if !stopped {
			done(streamErr)
		}
	})))

	return nil
}

func (p *Player) Stop(res *audio.Resource) {
	p.mu.Lock()
	pb := p.active
	if pb == nil || pb.id != res.ID {
		p.mu.Unlock()
		return
	}
	pb.stopped = true
	p.active = nil
	p.mu.Unlock()

	// A drained Ctrl ends the sequence and runs the callback, which closes the decoder
	beepspeaker.Lock()
	pb.ctrl.Streamer = nil
	beepspeaker.Unlock()

	p.logger.Debug().Str("playback_id", res.ID).Msg("Speaker stopped")
}
