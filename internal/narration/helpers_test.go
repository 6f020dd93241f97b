package narration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
)

// fakeSynth returns immediately unless a text is held, fails texts listed in fail
// and returns (nil, nil) for texts listed in empty.
// A held text ignores cancellation to simulate a response that arrives late.
type fakeSynth struct {
	mu        sync.Mutex
	calls     []string
	fail      map[string]error
	empty     map[string]bool
	held      map[string]chan struct{}
	cancelled map[string]bool
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{
		fail:      make(map[string]error),
		empty:     make(map[string]bool),
		held:      make(map[string]chan struct{}),
		cancelled: make(map[string]bool),
	}
}

func (s *fakeSynth) hold(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[text] = make(chan struct{})
}

func (s *fakeSynth) release(text string) {
	s.mu.Lock()
	ch := s.held[text]
	delete(s.held, text)
	s.mu.Unlock()
	close(ch)
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) (*audio.Resource, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	ch := s.held[text]
	err := s.fail[text]
	empty := s.empty[text]
	s.mu.Unlock()

	if ch != nil {
		<-ch
		s.mu.Lock()
		s.cancelled[text] = ctx.Err() != nil
		s.mu.Unlock()
	}
	if err != nil || empty {
		return nil, err
	}
	return audio.NewClip(text, []byte("mp3"), "").NewResource(), nil
}

func (s *fakeSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSynth) wasCancelled(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[text]
}

// fakePlayer stands in for the media element and tracks overlap
type fakePlayer struct {
	mu         sync.Mutex
	played     []string
	stopped    []string
	active     map[string]*audio.Resource
	done       map[string]func(error)
	maxActive  int
	playErrFor map[string]error
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		active:     make(map[string]*audio.Resource),
		done:       make(map[string]func(error)),
		playErrFor: make(map[string]error),
	}
}

func (p *fakePlayer) Play(res *audio.Resource, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.playErrFor[res.Text]; err != nil {
		return err
	}
	p.played = append(p.played, res.Text)
	p.active[res.Text] = res
	p.done[res.Text] = done
	if len(p.active) > p.maxActive {
		p.maxActive = len(p.active)
	}
	return nil
}

func (p *fakePlayer) Stop(res *audio.Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.active[res.Text]; ok && cur == res {
		delete(p.active, res.Text)
		p.stopped = append(p.stopped, res.Text)
	}
}

// end simulates the media element reporting the end of text
func (p *fakePlayer) end(text string, err error) {
	p.mu.Lock()
	done := p.done[text]
	delete(p.done, text)
	delete(p.active, text)
	p.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (p *fakePlayer) playedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

func (p *fakePlayer) stoppedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.stopped))
	copy(out, p.stopped)
	return out
}

func (p *fakePlayer) peakActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// recordingEvents captures lifecycle notifications
type recordingEvents struct {
	mu       sync.Mutex
	started  []string
	finished []string
	skipped  []string
	flushes  int
}

func (e *recordingEvents) NarrationStarted(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, text)
}

func (e *recordingEvents) NarrationFinished(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, text)
}

func (e *recordingEvents) NarrationSkipped(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipped = append(e.skipped, text)
}

func (e *recordingEvents) QueueFlushed(int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes++
}

func (e *recordingEvents) skippedTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.skipped...)
}

// fakeAuth flips authentication without flushing anything
type fakeAuth struct {
	ok atomic.Bool
}

func (a *fakeAuth) Authenticated() bool { return a.ok.Load() }

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// settle gives background goroutines time to act on anything they should not do
func settle() {
	time.Sleep(30 * time.Millisecond)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
