package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/coach"
	"github.com/jagadeep298218/HackUTA7/internal/config"
	"github.com/jagadeep298218/HackUTA7/internal/narration"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/playback"
	"github.com/jagadeep298218/HackUTA7/internal/playback/speaker"
	"github.com/jagadeep298218/HackUTA7/internal/resilience"
	"github.com/jagadeep298218/HackUTA7/internal/speech"
)

type options struct {
	relayURL string
	voiceID  string
	logLevel string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "narrator",
		Short: "Narrate coaching messages through the local speaker",
		Long: `narrator sends text to the speech relay and plays the audio in order,
one message at a time, using the same queue the browser sessions use.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.relayURL, "relay", cfg.TTSRelayURL, "speech relay base URL")
	rootCmd.PersistentFlags().StringVar(&opts.voiceID, "voice", cfg.ElevenLabsVoiceID, "voice id sent to the relay")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	sayCmd := &cobra.Command{
		Use:   "say TEXT...",
		Short: "Narrate each argument in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, opts, func(ctx context.Context, s *narration.Session) error {
				for _, text := range args {
					s.Enqueue(text)
				}
				return nil
			})
		},
	}

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Narrate lines read from stdin until EOF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, opts, func(ctx context.Context, s *narration.Session) error {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if ctx.Err() != nil {
						return nil
					}
					s.Enqueue(scanner.Text())
				}
				return scanner.Err()
			})
		},
	}

	encourageCmd := &cobra.Command{
		Use:   "encourage",
		Short: "Narrate a random encouragement on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return run(cmd.Context(), cfg, opts, func(ctx context.Context, s *narration.Session) error {
				coach.NewEncourager(interval).Run(ctx, func(msg string) {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
					s.Enqueue(msg)
				})
				return nil
			})
		},
	}
	encourageCmd.Flags().Duration("interval", cfg.EncouragementIntervalDuration(), "time between encouragements")

	rootCmd.AddCommand(sayCmd, listenCmd, encourageCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// run builds a narration session on the local speaker, feeds it and waits
// for the queue to drain or ctx to end.
func run(ctx context.Context, cfg *config.Config, opts *options, feed func(context.Context, *narration.Session) error) error {
	logger := observability.NewLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, opts.logLevel)

	cache, err := audio.NewCache(cfg.AudioCacheMaxEntries)
	if err != nil {
		return err
	}
	breaker := resilience.NewCircuitBreaker("speech-relay", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration())
	fetcher := speech.NewRelayClient(opts.relayURL, opts.voiceID, &http.Client{}, breaker)
	synth := speech.NewSynthesizer(fetcher, cache, cfg.SynthesisTimeoutDuration(), logger)

	ctrl := playback.NewController(speaker.NewPlayer(logger), logger)
	session := narration.NewSession(synth, ctrl, nil, logger)
	defer session.Close()

	// The local user is always signed in
	session.SetAuthenticated(true)

	if err := feed(ctx, session); err != nil {
		return err
	}
	return waitIdle(ctx, session.Orchestrator)
}

func waitIdle(ctx context.Context, o *narration.Orchestrator) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap := o.Snapshot()
		if len(snap.Pending) == 0 && !snap.Advancing && !snap.Playing {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
