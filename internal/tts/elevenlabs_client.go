package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/config"
	"github.com/jagadeep298218/HackUTA7/internal/resilience"
)

// maxErrorBody bounds how much of a provider error response is kept as details
const maxErrorBody = 64 * 1024

// ElevenLabsClient implements Client using ElevenLabs' text-to-speech API
type ElevenLabsClient struct {
	apiKey          string
	baseURL         string
	voiceID         string
	modelID         string
	stability       float64
	similarityBoost float64
	streamLatency   int
	httpClient      *http.Client
	breaker         *resilience.CircuitBreaker
	logger          zerolog.Logger
}

// VoiceSettings controls the provider's voice rendering
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsRequest represents the request payload for the ElevenLabs TTS API
type ElevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client
func NewElevenLabsClient(cfg *config.Config, httpClient *http.Client, logger zerolog.Logger) *ElevenLabsClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabsClient{
		apiKey:          cfg.ElevenLabsAPIKey,
		baseURL:         strings.TrimRight(cfg.ElevenLabsBaseURL, "/"),
		voiceID:         cfg.ElevenLabsVoiceID,
		modelID:         cfg.ElevenLabsModelID,
		stability:       cfg.ElevenLabsStability,
		similarityBoost: cfg.ElevenLabsSimilarityBoost,
		streamLatency:   cfg.ElevenLabsStreamLatency,
		httpClient:      httpClient,
		breaker:         resilience.NewCircuitBreaker("elevenlabs", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration()),
		logger:          logger.With().Str("component", "elevenlabs").Logger(),
	}
}

// Synthesize opens a streaming synthesis request. Non-2xx responses are
// returned as *ProviderError carrying the provider's body. A missing key is
// left for the provider to reject.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.voiceID
	}

	payload, err := json.Marshal(ElevenLabsRequest{
		Text:    req.Text,
		ModelID: c.modelID,
		VoiceSettings: VoiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var audio *Audio
	err = c.breaker.Call(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(voiceID), bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "audio/mpeg")
		if c.apiKey != "" {
			httpReq.Header.Set("xi-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "audio/mpeg"
		}
		audio = &Audio{ContentType: contentType, Body: resp.Body}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Int("text_length", len(req.Text)).Msg("Synthesis request failed")
		return nil, err
	}

	return audio, nil
}

// Ready reports an error while the provider circuit is open or no key is set
func (c *ElevenLabsClient) Ready() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if !c.breaker.Allow() {
		return fmt.Errorf("elevenlabs: %w", resilience.ErrCircuitOpen)
	}
	return nil
}

func (c *ElevenLabsClient) endpoint(voiceID string) string {
	q := url.Values{}
	q.Set("optimize_streaming_latency", strconv.Itoa(c.streamLatency))
	return fmt.Sprintf("%s/v1/text-to-speech/%s?%s", c.baseURL, url.PathEscape(voiceID), q.Encode())
}
