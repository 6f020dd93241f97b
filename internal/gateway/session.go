package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/coach"
	"github.com/jagadeep298218/HackUTA7/internal/config"
	"github.com/jagadeep298218/HackUTA7/internal/narration"
	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/playback"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

var errSessionClosed = errors.New("session closed")

var upgrader = websocket.Upgrader{
	// The relay already allows every origin
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// Handler upgrades /ws/narration requests into narration sessions
type Handler struct {
	cfg      *config.Config
	synth    narration.Synthesizer
	reviewer *coach.Reviewer
	logger   zerolog.Logger
}

// NewHandler creates a handler. All sessions share synth, and with it the audio cache.
func NewHandler(cfg *config.Config, synth narration.Synthesizer, reviewer *coach.Reviewer, logger zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, synth: synth, reviewer: reviewer, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	session := NewSession(conn, h.cfg, h.synth, h.reviewer)
	session.Run(r.Context())
}

// Session is one browser connection with its own narration queue
type Session struct {
	conn     *websocket.Conn
	cfg      *config.Config
	reviewer *coach.Reviewer

	narration *narration.Session
	player    *RemotePlayer

	correlationID string
	metrics       *observability.SessionMetrics
	logger        zerolog.Logger

	out    chan OutboundMessage
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	token         string
	authenticated bool
	welcomed      bool
}

// NewSession wires a narration session whose media element is the browser
func NewSession(conn *websocket.Conn, cfg *config.Config, synth narration.Synthesizer, reviewer *coach.Reviewer) *Session {
	correlationID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(correlationID).With().Str("component", "gateway").Logger()

	s := &Session{
		conn:          conn,
		cfg:           cfg,
		reviewer:      reviewer,
		correlationID: correlationID,
		metrics:       observability.NewSessionMetrics(correlationID),
		logger:        logger,
		out:           make(chan OutboundMessage, sendBufferSize),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.player = NewRemotePlayer(s.send)
	ctrl := playback.NewController(s.player, logger)
	s.narration = narration.NewSession(synth, ctrl, statusEvents{s}, logger)
	return s
}

// Run serves the connection until it closes or ctx ends, then tears the
// narration session down.
func (s *Session) Run(ctx context.Context) {
	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("Narration session opened")

	// Closing the connection unblocks the reader once the session ends
	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.cancel()
		s.conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer wg.Done()
		coach.NewEncourager(s.cfg.EncouragementIntervalDuration()).Run(s.ctx, s.say)
	}()

	s.readLoop()

	s.cancel()
	s.narration.Close()
	wg.Wait()

	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Narration session closed")
}

func (s *Session) readLoop() {
	if s.cfg.WSReadLimit > 0 {
		s.conn.SetReadLimit(int64(s.cfg.WSReadLimit))
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
				s.metrics.RecordError("read_error", "gateway")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			continue
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg InboundMessage) {
	switch msg.Type {
	case EventAuth:
		s.handleAuth(msg)

	case EventProblem:
		if msg.ProblemTitle != "" {
			s.say(coach.NewChallengeMessage(msg.ProblemTitle))
		}

	case EventCoach:
		s.say(msg.Text)

	case EventRun:
		s.handleRun(msg)

	case EventEnded:
		s.player.Finished(msg.PlaybackID, nil)

	case EventError:
		message := msg.Message
		if message == "" {
			message = "media error"
		}
		s.player.Finished(msg.PlaybackID, errors.New(message))

	default:
		s.logger.Warn().Str("type", msg.Type).Msg("Unknown client event")
	}
}

func (s *Session) handleAuth(msg InboundMessage) {
	s.mu.Lock()
	s.authenticated = msg.Authenticated
	s.token = msg.Token
	if !msg.Authenticated {
		s.token = ""
	}
	greet := msg.Authenticated && !s.welcomed && msg.ProblemTitle != ""
	if greet {
		s.welcomed = true
	}
	s.mu.Unlock()

	s.narration.SetAuthenticated(msg.Authenticated)
	if greet {
		s.say(coach.WelcomeMessage(msg.ProblemTitle))
	}
}

func (s *Session) handleRun(msg InboundMessage) {
	if s.reviewer == nil {
		return
	}

	s.mu.RLock()
	authenticated := s.authenticated
	token := s.token
	s.mu.RUnlock()

	req := coach.RunRequest{
		Code:      msg.Code,
		Language:  msg.Language,
		ProblemID: msg.ProblemID,
		TestCases: msg.TestCases,
	}

	if strings.TrimSpace(req.Code) == "" {
		s.sendRunResult("", coach.NeedCodeMessage)
		s.narration.Enqueue(coach.NeedCodeMessage)
		return
	}
	if !authenticated {
		s.sendRunResult("", coach.SignInMessage)
		return
	}

	s.sendRunResult(coach.RunningText, "")
	go func() {
		review := s.reviewer.Review(s.ctx, req, token)
		if s.ctx.Err() != nil {
			return
		}
		s.sendRunResult(review.Terminal, review.Message)
		s.narration.Enqueue(review.Message)
	}()
}

// say shows a coach message and queues it for narration
func (s *Session) say(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	_ = s.send(OutboundMessage{Type: EventMessage, Text: text})
	s.narration.Enqueue(text)
}

func (s *Session) sendRunResult(terminal, message string) {
	_ = s.send(OutboundMessage{Type: EventRunResult, Terminal: terminal, Message: message})
}

// send queues an event for the writer without blocking
func (s *Session) send(msg OutboundMessage) error {
	select {
	case <-s.ctx.Done():
		return errSessionClosed
	default:
	}

	select {
	case s.out <- msg:
		return nil
	default:
		s.metrics.RecordError("send_buffer_full", "gateway")
		return errors.New("send buffer full")
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Error().Err(err).Str("type", msg.Type).Msg("Error sending event to client")
				s.metrics.RecordError("write_error", "gateway")
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// statusEvents reports narration progress to the browser
type statusEvents struct {
	s *Session
}

func (e statusEvents) NarrationStarted(text string) {
	_ = e.s.send(OutboundMessage{Type: EventStatus, State: "playing", Text: text})
}

func (e statusEvents) NarrationFinished(text string, err error) {
	_ = e.s.send(OutboundMessage{Type: EventStatus, State: "idle", Text: text})
}

func (e statusEvents) NarrationSkipped(text string, err error) {
	_ = e.s.send(OutboundMessage{Type: EventStatus, State: "skipped", Text: text})
}

func (e statusEvents) QueueFlushed(dropped int) {
	_ = e.s.send(OutboundMessage{Type: EventStatus, State: "flushed"})
}
