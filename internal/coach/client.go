package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/resilience"
)

// Client calls the code-analysis, coaching and run backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a backend client. breaker and retry may be nil.
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig, logger zerolog.Logger) *Client {
	if retry == nil {
		retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		retry:      retry,
		logger:     logger.With().Str("component", "backend").Logger(),
	}
}

// Analyze asks the backend for complexity hints and detected structures
func (c *Client) Analyze(ctx context.Context, code, problemID, token string) (*Analysis, error) {
	var out Analysis
	if err := c.post(ctx, "/analyze", token, analyzeRequest{Code: code, ProblemID: problemID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Coach asks the backend for a coaching message about code
func (c *Client) Coach(ctx context.Context, code string, analysis *Analysis, token string) (*Coaching, error) {
	var out Coaching
	if err := c.post(ctx, "/coach", token, coachRequest{Code: code, Analysis: analysis}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunCode executes code against the problem's test cases
func (c *Client) RunCode(ctx context.Context, req RunRequest, token string) (*RunResult, error) {
	var out RunResult
	if err := c.post(ctx, "/run-code", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready reports an error while the backend circuit is open
func (c *Client) Ready() error {
	if c.breaker != nil && !c.breaker.Allow() {
		return fmt.Errorf("backend: %w", resilience.ErrCircuitOpen)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	start := time.Now()
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		if c.breaker == nil {
			return c.do(ctx, endpoint, token, payload, out)
		}
		return c.breaker.Call(func() error {
			return c.do(ctx, endpoint, token, payload, out)
		})
	}, c.retry, resilience.IsRetryableNetworkError)

	observability.RecordBackend(endpoint, err == nil, time.Since(start))
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Backend request failed")
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, token string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		statusErr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return resilience.NewRetryableError(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
