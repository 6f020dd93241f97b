package narration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/playback"
	"github.com/jagadeep298218/HackUTA7/internal/speech"
)

func newTestOrchestrator(synth Synthesizer, opts ...Option) (*Orchestrator, *fakePlayer) {
	player := newFakePlayer()
	ctrl := playback.NewController(player, zerolog.Nop())
	return NewOrchestrator(synth, ctrl, zerolog.Nop(), opts...), player
}

func TestOrchestrator_FIFOOrder(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	for _, text := range []string{"A", "B", "C"} {
		if got := o.Enqueue(text); got != Accepted {
			t.Fatalf("Expected %s to be accepted, got %s", text, got)
		}
	}

	eventually(t, "A to play", func() bool { return equal(player.playedTexts(), []string{"A"}) })
	settle()
	if played := player.playedTexts(); len(played) != 1 {
		t.Fatalf("Expected only A to be playing, got %v", played)
	}

	player.end("A", nil)
	eventually(t, "B to play", func() bool { return equal(player.playedTexts(), []string{"A", "B"}) })

	player.end("B", nil)
	eventually(t, "C to play", func() bool { return equal(player.playedTexts(), []string{"A", "B", "C"}) })

	player.end("C", nil)
	eventually(t, "idle", func() bool {
		s := o.Snapshot()
		return !s.Playing && s.State == playback.StateIdle && len(s.Pending) == 0
	})

	if peak := player.peakActive(); peak != 1 {
		t.Errorf("Expected at most one active playback, got %d", peak)
	}
}

func TestOrchestrator_DuplicateWhilePending(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("X")
	eventually(t, "X to play", func() bool { return len(player.playedTexts()) == 1 })

	if got := o.Enqueue("A"); got != Accepted {
		t.Fatalf("Expected A accepted, got %s", got)
	}
	if got := o.Enqueue("A"); got != RejectedDuplicate {
		t.Errorf("Expected duplicate A rejected, got %s", got)
	}
	if got := o.Enqueue("X"); got != RejectedDuplicate {
		t.Errorf("Expected currently playing X rejected, got %s", got)
	}

	if pending := o.Snapshot().Pending; !equal(pending, []string{"A"}) {
		t.Errorf("Expected pending [A], got %v", pending)
	}
}

func TestOrchestrator_DuplicateWhileSynthesizing(t *testing.T) {
	synth := newFakeSynth()
	synth.hold("A")
	o, player := newTestOrchestrator(synth)

	o.Enqueue("A")
	if got := o.Enqueue("A"); got != RejectedDuplicate {
		t.Errorf("Expected duplicate of in-flight A rejected, got %s", got)
	}

	synth.release("A")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })
	player.end("A", nil)
	settle()

	if played := player.playedTexts(); !equal(played, []string{"A"}) {
		t.Errorf("Expected A narrated once, got %v", played)
	}
}

func TestOrchestrator_RepeatAfterFinish(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("A")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })
	player.end("A", nil)
	eventually(t, "A to finish", func() bool { return !o.Snapshot().Playing })

	if got := o.Enqueue("A"); got != Accepted {
		t.Fatalf("Expected A accepted again, got %s", got)
	}
	eventually(t, "A to play again", func() bool { return equal(player.playedTexts(), []string{"A", "A"}) })
}

func TestOrchestrator_NonAdjacentRepeat(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("X")
	eventually(t, "X to play", func() bool { return len(player.playedTexts()) == 1 })

	o.Enqueue("A")
	o.Enqueue("B")
	if got := o.Enqueue("A"); got != Accepted {
		t.Errorf("Expected non-adjacent A accepted, got %s", got)
	}
	if pending := o.Snapshot().Pending; !equal(pending, []string{"A", "B", "A"}) {
		t.Errorf("Expected [A B A], got %v", pending)
	}
}

func TestOrchestrator_CacheIdempotence(t *testing.T) {
	fetcher := &countingFetcher{}
	synth := speech.NewSynthesizer(fetcher, audio.NewMemoryCache(), time.Second, zerolog.Nop())
	o, player := newTestOrchestrator(synth)

	o.Enqueue("Great job!")
	eventually(t, "first narration", func() bool { return len(player.playedTexts()) == 1 })
	player.end("Great job!", nil)
	eventually(t, "first narration to finish", func() bool { return !o.Snapshot().Playing })

	o.Enqueue("Great job!")
	eventually(t, "second narration", func() bool { return len(player.playedTexts()) == 2 })

	if n := fetcher.count(); n != 1 {
		t.Errorf("Expected 1 fetch for repeated text, got %d", n)
	}
}

func TestOrchestrator_FailureSkip(t *testing.T) {
	synth := newFakeSynth()
	synth.fail["B"] = errors.New("upstream 500")
	events := &recordingEvents{}
	o, player := newTestOrchestrator(synth, WithEvents(events))

	o.Enqueue("A")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })
	o.Enqueue("B")
	o.Enqueue("C")

	player.end("A", nil)
	eventually(t, "C to play", func() bool { return equal(player.playedTexts(), []string{"A", "C"}) })

	if skipped := events.skippedTexts(); !equal(skipped, []string{"B"}) {
		t.Errorf("Expected B skipped, got %v", skipped)
	}
}

func TestOrchestrator_NilResourceSkips(t *testing.T) {
	synth := newFakeSynth()
	synth.empty["A"] = true
	events := &recordingEvents{}
	o, player := newTestOrchestrator(synth, WithEvents(events))

	o.Enqueue("A")
	o.Enqueue("B")

	eventually(t, "B to play", func() bool { return equal(player.playedTexts(), []string{"B"}) })
	if skipped := events.skippedTexts(); !equal(skipped, []string{"A"}) {
		t.Errorf("Expected A skipped, got %v", skipped)
	}
	if snap := o.Snapshot(); snap.Current != "B" {
		t.Errorf("Expected B current, got %q", snap.Current)
	}
}

func TestOrchestrator_PlaybackErrorAdvances(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("A")
	o.Enqueue("B")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })

	player.end("A", errors.New("media error"))
	eventually(t, "B to play", func() bool { return equal(player.playedTexts(), []string{"A", "B"}) })
}

func TestOrchestrator_PlayStartErrorAdvances(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)
	player.playErrFor["A"] = errors.New("unsupported format")

	o.Enqueue("A")
	o.Enqueue("B")

	eventually(t, "B to play", func() bool { return equal(player.playedTexts(), []string{"B"}) })
}

func TestOrchestrator_FlushStopsAndDoesNotAdvance(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("A")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })
	o.Enqueue("B")
	o.Enqueue("C")

	o.Flush()

	s := o.Snapshot()
	if len(s.Pending) != 0 || s.Playing || s.State != playback.StateIdle {
		t.Errorf("Expected empty idle state after flush, got %+v", s)
	}
	if stopped := player.stoppedTexts(); !equal(stopped, []string{"A"}) {
		t.Errorf("Expected A force-stopped, got %v", stopped)
	}

	// A late end signal from the stopped media must not advance
	player.end("A", nil)
	settle()
	if played := player.playedTexts(); !equal(played, []string{"A"}) {
		t.Errorf("Expected no advancement after flush, got %v", played)
	}
}

func TestOrchestrator_StaleSynthesisAfterFlush(t *testing.T) {
	synth := newFakeSynth()
	synth.hold("D")
	o, player := newTestOrchestrator(synth)

	o.Enqueue("D")
	eventually(t, "D synthesis to start", func() bool { return synth.callCount() == 1 })

	o.Flush()
	synth.release("D")
	settle()

	if played := player.playedTexts(); len(played) != 0 {
		t.Errorf("Expected no playback after stale synthesis, got %v", played)
	}
	s := o.Snapshot()
	if s.Playing || s.Advancing || len(s.Pending) != 0 {
		t.Errorf("Expected no residual state, got %+v", s)
	}
	if !synth.wasCancelled("D") {
		t.Error("Expected in-flight synthesis context to be cancelled")
	}

	// The queue still works afterwards
	o.Enqueue("E")
	eventually(t, "E to play", func() bool { return equal(player.playedTexts(), []string{"E"}) })
}

func TestOrchestrator_AuthLostBeforeStart(t *testing.T) {
	auth := &fakeAuth{}
	auth.ok.Store(true)

	synth := newFakeSynth()
	synth.hold("A")
	o, player := newTestOrchestrator(synth, WithAuthenticator(auth))

	o.Enqueue("A")
	o.Enqueue("B")
	eventually(t, "A synthesis to start", func() bool { return synth.callCount() == 1 })

	auth.ok.Store(false)
	synth.release("A")
	settle()

	if played := player.playedTexts(); len(played) != 0 {
		t.Errorf("Expected no playback without authentication, got %v", played)
	}
	if pending := o.Snapshot().Pending; len(pending) != 0 {
		t.Errorf("Expected pending dropped, got %v", pending)
	}
}

func TestOrchestrator_EnqueueRejections(t *testing.T) {
	auth := &fakeAuth{}
	o, _ := newTestOrchestrator(newFakeSynth(), WithAuthenticator(auth))

	if got := o.Enqueue("A"); got != RejectedUnauthenticated {
		t.Errorf("Expected RejectedUnauthenticated, got %s", got)
	}

	auth.ok.Store(true)
	if got := o.Enqueue("   "); got != RejectedEmpty {
		t.Errorf("Expected RejectedEmpty, got %s", got)
	}

	o.Close()
	if got := o.Enqueue("A"); got != RejectedClosed {
		t.Errorf("Expected RejectedClosed, got %s", got)
	}
}

func TestOrchestrator_CloseStopsPlayback(t *testing.T) {
	synth := newFakeSynth()
	o, player := newTestOrchestrator(synth)

	o.Enqueue("A")
	o.Enqueue("B")
	eventually(t, "A to play", func() bool { return len(player.playedTexts()) == 1 })

	o.Close()
	o.Close()
	o.TryAdvance()
	settle()

	if stopped := player.stoppedTexts(); !equal(stopped, []string{"A"}) {
		t.Errorf("Expected A stopped, got %v", stopped)
	}
	if played := player.playedTexts(); !equal(played, []string{"A"}) {
		t.Errorf("Expected no playback after close, got %v", played)
	}
}

func TestEnqueueResult_String(t *testing.T) {
	tests := map[EnqueueResult]string{
		Accepted:                "accepted",
		RejectedEmpty:           "empty",
		RejectedUnauthenticated: "unauthenticated",
		RejectedDuplicate:       "duplicate",
		RejectedClosed:          "closed",
		EnqueueResult(99):       "unknown",
	}
	for result, want := range tests {
		if result.String() != want {
			t.Errorf("Expected %q, got %q", want, result.String())
		}
	}
}

// countingFetcher is a speech.Fetcher that counts network calls
type countingFetcher struct {
	n atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, text string) ([]byte, error) {
	f.n.Add(1)
	return []byte("mp3"), nil
}

func (f *countingFetcher) count() int32 {
	return f.n.Load()
}
