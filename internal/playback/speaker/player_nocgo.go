//go:build !cgo

package speaker

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
)

// ErrUnavailable is returned by Play in builds without cgo
var ErrUnavailable = errors.New("local audio not available in nocgo build")

// Player is a stub for builds without cgo; every Play fails
type Player struct{}

func NewPlayer(logger zerolog.Logger) *Player {
	logger.Warn().Str("component", "speaker").Msg("Built without cgo, local playback disabled")
	return &Player{}
}

func (p *Player) Play(res *audio.Resource, done func(error)) error {
	return ErrUnavailable
}

func (p *Player) Stop(res *audio.Resource) {}
