package gateway

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
)

// RemotePlayer treats the browser as the media element. Audio is pushed as a
// play event and the browser reports back with ended or error.
type RemotePlayer struct {
	send func(OutboundMessage) error

	mu   sync.Mutex
	id   string
	done func(error)
}

// NewRemotePlayer creates a player that delivers events through send
func NewRemotePlayer(send func(OutboundMessage) error) *RemotePlayer {
	return &RemotePlayer{send: send}
}

func (p *RemotePlayer) Play(res *audio.Resource, done func(error)) error {
	data, err := io.ReadAll(res)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	p.mu.Lock()
	p.id = res.ID
	p.done = done
	p.mu.Unlock()

	err = p.send(OutboundMessage{
		Type:        EventPlay,
		PlaybackID:  res.ID,
		Text:        res.Text,
		ContentType: res.ContentType(),
		Audio:       base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		p.clear(res.ID)
		return fmt.Errorf("failed to send play event: %w", err)
	}
	return nil
}

func (p *RemotePlayer) Stop(res *audio.Resource) {
	if !p.clear(res.ID) {
		return
	}
	// Best effort; a closed session has nothing left to stop
	_ = p.send(OutboundMessage{Type: EventStop, PlaybackID: res.ID})
}

// Finished delivers the browser's ended or error report for a playback
func (p *RemotePlayer) Finished(playbackID string, err error) bool {
	p.mu.Lock()
	if p.id == "" || p.id != playbackID {
		p.mu.Unlock()
		return false
	}
	done := p.done
	p.id = ""
	p.done = nil
	p.mu.Unlock()

	done(err)
	return true
}

func (p *RemotePlayer) clear(playbackID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id != playbackID {
		return false
	}
	p.id = ""
	p.done = nil
	return true
}
