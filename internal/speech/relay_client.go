package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/jagadeep298218/HackUTA7/internal/resilience"
)

// DefaultMaxAudioBytes bounds a single clip read from the relay
const DefaultMaxAudioBytes = 16 << 20

// Fetcher obtains raw synthesized audio for a text
type Fetcher interface {
	Fetch(ctx context.Context, text string) ([]byte, error)
}

// UpstreamError is a non-success response from the speech relay
type UpstreamError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *UpstreamError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("speech relay returned %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("speech relay returned %d: %s", e.StatusCode, e.Message)
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

type ttsError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// RelayClient fetches audio from the POST /api/tts speech relay
type RelayClient struct {
	endpoint   string
	voiceID    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	maxBytes   int64
}

// NewRelayClient creates a client for the relay at baseURL. An empty voiceID
// lets the relay pick its default voice.
func NewRelayClient(baseURL, voiceID string, httpClient *http.Client, breaker *resilience.CircuitBreaker) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RelayClient{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/tts",
		voiceID:    voiceID,
		httpClient: httpClient,
		breaker:    breaker,
		maxBytes:   DefaultMaxAudioBytes,
	}
}

// Breaker returns the circuit guarding the relay, or nil
func (c *RelayClient) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Fetch requests audio for text. Success requires a non-empty audio body.
func (c *RelayClient) Fetch(ctx context.Context, text string) ([]byte, error) {
	if c.breaker == nil {
		return c.fetch(ctx, text)
	}

	var data []byte
	err := c.breaker.Call(func() error {
		var err error
		data, err = c.fetch(ctx, text)
		return err
	})
	return data, err
}

func (c *RelayClient) fetch(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(ttsRequest{Text: text, VoiceID: c.voiceID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeUpstreamError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && !strings.HasPrefix(mediaType, "audio/") && mediaType != "application/octet-stream" {
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrEmptyAudio, mediaType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAudioTooLarge, c.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

func decodeUpstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	upstream := &UpstreamError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var payload ttsError
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		upstream.Message = payload.Error
		if len(payload.Details) > 0 {
			var s string
			if json.Unmarshal(payload.Details, &s) == nil {
				upstream.Details = s
			} else {
				upstream.Details = string(payload.Details)
			}
		}
	} else if len(body) > 0 {
		upstream.Details = string(body)
	}

	return upstream
}
