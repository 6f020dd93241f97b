package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the coach gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"3000"`

	// ElevenLabs TTS provider configuration.
	// The API key is optional at startup: without it every synthesis call fails upstream.
	ElevenLabsAPIKey          string  `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsBaseURL         string  `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsVoiceID         string  `envconfig:"ELEVENLABS_VOICE_ID" default:"kHhWB9Fw3aF6ly7JvltC"`
	ElevenLabsModelID         string  `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_monolingual_v1"`
	ElevenLabsStability       float64 `envconfig:"ELEVENLABS_STABILITY" default:"0.4"`
	ElevenLabsSimilarityBoost float64 `envconfig:"ELEVENLABS_SIMILARITY_BOOST" default:"0.7"`
	ElevenLabsStreamLatency   int     `envconfig:"ELEVENLABS_STREAMING_LATENCY" default:"4"` // optimize_streaming_latency (0-4)

	// Speech relay consumed by the narration pipeline (usually this service itself)
	TTSRelayURL string `envconfig:"TTS_RELAY_URL" default:"http://localhost:3000"`

	// Code-analysis / coach / run backend
	BackendURL     string `envconfig:"BACKEND_URL" default:"http://localhost:8000"`
	BackendTimeout int    `envconfig:"BACKEND_TIMEOUT" default:"30"` // seconds

	// Narration configuration
	SynthesisTimeout      int `envconfig:"SYNTHESIS_TIMEOUT" default:"15"`      // seconds
	AudioCacheMaxEntries  int `envconfig:"AUDIO_CACHE_MAX_ENTRIES" default:"0"` // 0 keeps every clip for the session
	EncouragementInterval int `envconfig:"ENCOURAGEMENT_INTERVAL" default:"20"` // seconds, 0 disables
	WSReadLimit           int `envconfig:"WS_READ_LIMIT" default:"1048576"`     // bytes per client message

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`    // Empty disables the gRPC health server
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express
func (c *Config) Validate() error {
	if c.TTSRelayURL == "" {
		return fmt.Errorf("TTS_RELAY_URL is required")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.SynthesisTimeout <= 0 {
		return fmt.Errorf("SYNTHESIS_TIMEOUT must be positive, got %d", c.SynthesisTimeout)
	}
	if c.AudioCacheMaxEntries < 0 {
		return fmt.Errorf("AUDIO_CACHE_MAX_ENTRIES must not be negative, got %d", c.AudioCacheMaxEntries)
	}
	if c.ElevenLabsStreamLatency < 0 || c.ElevenLabsStreamLatency > 4 {
		return fmt.Errorf("ELEVENLABS_STREAMING_LATENCY must be between 0 and 4, got %d", c.ElevenLabsStreamLatency)
	}
	return nil
}

// SynthesisTimeoutDuration returns the per-message synthesis deadline
func (c *Config) SynthesisTimeoutDuration() time.Duration {
	return time.Duration(c.SynthesisTimeout) * time.Second
}

// BackendTimeoutDuration returns the HTTP timeout for backend calls
func (c *Config) BackendTimeoutDuration() time.Duration {
	return time.Duration(c.BackendTimeout) * time.Second
}

// EncouragementIntervalDuration returns the encouragement cadence (zero when disabled)
func (c *Config) EncouragementIntervalDuration() time.Duration {
	return time.Duration(c.EncouragementInterval) * time.Second
}

// CircuitBreakerResetDuration returns the open-circuit cool down
func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// RetryInitialBackoffDuration returns the first retry backoff
func (c *Config) RetryInitialBackoffDuration() time.Duration {
	return time.Duration(c.RetryInitialBackoff) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
