package gateway

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/audio"
	"github.com/jagadeep298218/HackUTA7/internal/coach"
	"github.com/jagadeep298218/HackUTA7/internal/config"
)

type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, text string) (*audio.Resource, error) {
	return audio.NewClip(text, []byte("mp3:"+text), "audio/mpeg").NewResource(), nil
}

type fakeBackend struct{}

func (fakeBackend) Analyze(ctx context.Context, code, problemID, token string) (*coach.Analysis, error) {
	return &coach.Analysis{ComplexityHint: "O(n)"}, nil
}

func (fakeBackend) Coach(ctx context.Context, code string, analysis *coach.Analysis, token string) (*coach.Coaching, error) {
	return &coach.Coaching{Message: "Great swing, " + token + "!"}, nil
}

func (fakeBackend) RunCode(ctx context.Context, req coach.RunRequest, token string) (*coach.RunResult, error) {
	return &coach.RunResult{OverallPassed: true, ExecutionTime: 0.5}, nil
}

func startServer(t *testing.T) *websocket.Conn {
	t.Helper()

	cfg := &config.Config{WSReadLimit: 1 << 20}
	reviewer := coach.NewReviewer(fakeBackend{}, zerolog.Nop())
	server := httptest.NewServer(NewHandler(cfg, fakeSynth{}, reviewer, zerolog.Nop()))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, msg InboundMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
}

// readUntil skips events until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) OutboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg OutboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Waiting for %s: %v", eventType, err)
		}
		if msg.Type == eventType {
			return msg
		}
	}
}

// expectNo fails if an event of eventType arrives within d
func expectNo(t *testing.T, conn *websocket.Conn, eventType string, d time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	for {
		var msg OutboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == eventType {
			t.Fatalf("Unexpected %s event: %+v", eventType, msg)
		}
	}
}

func TestSession_NarratesInOrder(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: true, Token: "tok"})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "A"})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "B"})

	first := readUntil(t, conn, EventPlay)
	if first.Text != "A" {
		t.Fatalf("Expected A first, got %q", first.Text)
	}
	audioData, err := base64.StdEncoding.DecodeString(first.Audio)
	if err != nil || string(audioData) != "mp3:A" {
		t.Errorf("Unexpected audio payload %q (%v)", audioData, err)
	}
	if first.ContentType != "audio/mpeg" || first.PlaybackID == "" {
		t.Errorf("Unexpected play event %+v", first)
	}

	sendEvent(t, conn, InboundMessage{Type: EventEnded, PlaybackID: first.PlaybackID})

	second := readUntil(t, conn, EventPlay)
	if second.Text != "B" {
		t.Errorf("Expected B second, got %q", second.Text)
	}
}

func TestSession_PlaybackErrorAdvances(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: true})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "A"})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "B"})

	first := readUntil(t, conn, EventPlay)
	sendEvent(t, conn, InboundMessage{Type: EventError, PlaybackID: first.PlaybackID, Message: "decode error"})

	if next := readUntil(t, conn, EventPlay); next.Text != "B" {
		t.Errorf("Expected B after playback error, got %q", next.Text)
	}
}

func TestSession_LogoutStopsPlayback(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: true})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "A"})
	playing := readUntil(t, conn, EventPlay)

	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "B"})
	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "C"})
	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: false})

	stop := readUntil(t, conn, EventStop)
	if stop.PlaybackID != playing.PlaybackID {
		t.Errorf("Expected stop for %s, got %s", playing.PlaybackID, stop.PlaybackID)
	}

	// A late ended report must not resume the queue
	sendEvent(t, conn, InboundMessage{Type: EventEnded, PlaybackID: playing.PlaybackID})
	expectNo(t, conn, EventPlay, 150*time.Millisecond)
}

func TestSession_UnauthenticatedIgnoresCoach(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventCoach, Text: "A"})
	expectNo(t, conn, EventPlay, 150*time.Millisecond)
}

func TestSession_RunRequiresSignIn(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventRun, Code: "print(1)", Language: "python", ProblemID: "two-sum"})

	result := readUntil(t, conn, EventRunResult)
	if result.Message != coach.SignInMessage {
		t.Errorf("Expected sign-in prompt, got %+v", result)
	}
}

func TestSession_RunReview(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: true, Token: "tok"})
	sendEvent(t, conn, InboundMessage{Type: EventRun, Code: "print(1)", Language: "python", ProblemID: "two-sum"})

	running := readUntil(t, conn, EventRunResult)
	if running.Terminal != coach.RunningText {
		t.Errorf("Expected running text, got %q", running.Terminal)
	}

	final := readUntil(t, conn, EventRunResult)
	if final.Message != "Great swing, tok!" {
		t.Errorf("Unexpected coaching message %q", final.Message)
	}
	if !strings.Contains(final.Terminal, "All test cases passed!") {
		t.Errorf("Unexpected terminal %q", final.Terminal)
	}

	if play := readUntil(t, conn, EventPlay); play.Text != "Great swing, tok!" {
		t.Errorf("Expected coaching message narrated, got %q", play.Text)
	}
}

func TestSession_WelcomeOnFirstLogin(t *testing.T) {
	conn := startServer(t)

	sendEvent(t, conn, InboundMessage{Type: EventAuth, Authenticated: true, ProblemTitle: "Two Sum"})

	want := coach.WelcomeMessage("Two Sum")
	if msg := readUntil(t, conn, EventMessage); msg.Text != want {
		t.Errorf("Expected welcome message, got %q", msg.Text)
	}
	if play := readUntil(t, conn, EventPlay); play.Text != want {
		t.Errorf("Expected welcome narrated, got %q", play.Text)
	}
}
