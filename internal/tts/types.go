package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrMissingAPIKey is returned when no provider API key is configured
var ErrMissingAPIKey = errors.New("tts provider api key is not configured")

// Request is a single synthesis request
type Request struct {
	Text    string
	VoiceID string // Empty selects the configured default voice
}

// Audio is a streaming synthesis result. The caller must close Body.
type Audio struct {
	ContentType string
	Body        io.ReadCloser
}

// ProviderError reports a non-success response from the synthesis provider
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts provider returned status %d", e.StatusCode)
}

// Client defines the interface for a Text-to-Speech provider
type Client interface {
	// Synthesize requests speech for req and returns the audio stream
	Synthesize(ctx context.Context, req Request) (*Audio, error)

	// Ready reports whether the provider is currently accepting requests
	Ready() error
}
