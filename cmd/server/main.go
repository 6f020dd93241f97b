package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/coach"
	"github.com/jagadeep298218/HackUTA7/internal/config"
	"github.com/jagadeep298218/HackUTA7/internal/gateway"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/relay"
	"github.com/jagadeep298218/HackUTA7/internal/resilience"
	"github.com/jagadeep298218/HackUTA7/internal/speech"
	"github.com/jagadeep298218/HackUTA7/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("backend_url", cfg.BackendURL).
		Str("tts_relay_url", cfg.TTSRelayURL).
		Bool("elevenlabs_key_set", cfg.ElevenLabsAPIKey != "").
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Coach Gateway Service starting")

	if cfg.ElevenLabsAPIKey == "" {
		logger.Warn().Msg("ELEVENLABS_API_KEY is not set, every /api/tts request will fail")
	}

	// Speech relay
	ttsClient := tts.NewElevenLabsClient(cfg, &http.Client{}, logger)

	// Narration pipeline: relay client -> synthesizer + audio cache
	cache, err := audio.NewCache(cfg.AudioCacheMaxEntries)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create audio cache")
	}
	relayBreaker := resilience.NewCircuitBreaker("speech-relay", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration())
	relayClient := speech.NewRelayClient(cfg.TTSRelayURL, cfg.ElevenLabsVoiceID, &http.Client{}, relayBreaker)
	synth := speech.NewSynthesizer(relayClient, cache, cfg.SynthesisTimeoutDuration(), logger)

	// Code-analysis / coach / run backend
	backendBreaker := resilience.NewCircuitBreaker("backend", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration())
	backend := coach.NewClient(cfg.BackendURL, cfg.BackendTimeoutDuration(), backendBreaker, &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    cfg.RetryInitialBackoffDuration(),
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}, logger)
	reviewer := coach.NewReviewer(backend, logger)

	// Create HTTP server
	mux := http.NewServeMux()

	mux.Handle("/api/tts", relay.CORS(relay.NewHandler(ttsClient, logger)))
	mux.Handle("/ws/narration", gateway.NewHandler(cfg, synth, reviewer, logger))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness checks are closures to avoid import cycles
	checks := map[string]observability.HealthCheckFunc{
		"elevenlabs": func(ctx context.Context) (bool, error) {
			if err := ttsClient.Ready(); err != nil {
				return false, err
			}
			return true, nil
		},
		"speech_relay": func(ctx context.Context) (bool, error) {
			if !relayBreaker.Allow() {
				return false, fmt.Errorf("speech relay: %w", resilience.ErrCircuitOpen)
			}
			return true, nil
		},
		"backend": func(ctx context.Context) (bool, error) {
			if err := backend.Ready(); err != nil {
				return false, err
			}
			return true, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional gRPC health service for probes that only speak gRPC
	if cfg.GRPCHealthPort != "" {
		grpcHealth := observability.NewGRPCHealthServer(checks, 10*time.Second)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health server listening")
			if err := grpcHealth.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health server failed")
			}
		}()
	}

	// Create HTTP server with timeouts. The relay streams audio, so writes get a longer budget.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("tts_endpoint", fmt.Sprintf("http://localhost:%s/api/tts", cfg.Port)).
			Str("narration_endpoint", fmt.Sprintf("ws://localhost:%s/ws/narration", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
