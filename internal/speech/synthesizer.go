package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
)

var (
	// ErrEmptyText is returned for blank input
	ErrEmptyText = errors.New("speech: empty text")

	// ErrEmptyAudio is returned when the relay answers without decodable audio
	ErrEmptyAudio = errors.New("speech: empty audio response")

	// ErrAudioTooLarge is returned when the relay body exceeds the clip limit
	ErrAudioTooLarge = errors.New("speech: audio exceeds size limit")
)

// DefaultTimeout bounds a single synthesis fetch
const DefaultTimeout = 15 * time.Second

// Synthesizer turns text into playable resources, consulting the cache first
type Synthesizer struct {
	fetcher Fetcher
	cache   audio.Cache
	timeout time.Duration
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewSynthesizer creates a synthesizer. A non-positive timeout uses DefaultTimeout.
func NewSynthesizer(fetcher Fetcher, cache audio.Cache, timeout time.Duration, logger zerolog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cache == nil {
		cache = audio.NewMemoryCache()
	}
	return &Synthesizer{
		fetcher: fetcher,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Cache returns the audio cache backing this synthesizer
func (s *Synthesizer) Cache() audio.Cache {
	return s.cache
}

// Synthesize returns a fresh resource for text. Once a fetch for a text has
// succeeded, later calls are served from the cache without a network call.
// Concurrent misses for the same text share one fetch. Cancelling ctx
// releases the caller immediately; a shared fetch still completes within the
// timeout and populates the cache.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*audio.Resource, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if clip, ok := s.cache.Get(text); ok {
		observability.RecordSynthesis(true, true, 0)
		return clip.NewResource(), nil
	}

	ch := s.group.DoChan(text, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), text)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*audio.Clip).NewResource(), nil
	}
}

func (s *Synthesizer) fetch(ctx context.Context, text string) (*audio.Clip, error) {
	// Another flight may have finished between the cache check and this call
	if clip, ok := s.cache.Get(text); ok {
		return clip, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	data, err := s.fetcher.Fetch(ctx, text)
	latency := time.Since(start)
	if err == nil && len(data) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		observability.RecordSynthesis(false, false, latency)
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	clip := audio.NewClip(text, data, audio.DefaultContentType)
	s.cache.Put(text, clip)
	observability.RecordSynthesis(true, false, latency)

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("audio_bytes", len(data)).
		Dur("latency", latency).
		Msg("Synthesized clip")

	// Return the cached clip in case a concurrent Put won
	if cached, ok := s.cache.Get(text); ok {
		return cached, nil
	}
	return clip, nil
}
