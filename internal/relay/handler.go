package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jagadeep298218/HackUTA7/internal/observability"
	"github.com/jagadeep298218/HackUTA7/internal/tts"
)

// maxRequestBody bounds the JSON request body
const maxRequestBody = 1 << 20

// Request is the POST /api/tts body
type Request struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

// ErrorResponse is the JSON body returned on failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler relays synthesis requests to the TTS provider and streams the audio back
type Handler struct {
	client tts.Client
	logger zerolog.Logger
}

// NewHandler creates a relay handler
func NewHandler(client tts.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		client: client,
		logger: logger.With().Str("component", "tts_relay").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	start := time.Now()
	status, written := h.relay(w, r)
	observability.RecordRelay(status, time.Since(start), written)
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request) (int, int64) {
	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid TTS request body")
		return serverError(w), 0
	}
	if strings.TrimSpace(req.Text) == "" {
		h.logger.Warn().Msg("TTS request without text")
		return serverError(w), 0
	}

	audio, err := h.client.Synthesize(r.Context(), tts.Request{Text: req.Text, VoiceID: req.VoiceID})
	if err != nil {
		var perr *tts.ProviderError
		if errors.As(err, &perr) {
			h.logger.Error().Int("upstream_status", perr.StatusCode).Str("details", perr.Body).Msg("TTS provider error")
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "TTS failed", Details: perr.Body})
			return http.StatusInternalServerError, 0
		}
		h.logger.Error().Err(err).Msg("TTS relay error")
		observability.RecordError("relay", "tts_relay")
		return serverError(w), 0
	}
	defer audio.Body.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(flushWriter{w}, audio.Body)
	if err != nil {
		// Headers are already sent; the client sees a truncated stream
		h.logger.Warn().Err(err).Int64("bytes", written).Msg("TTS stream interrupted")
	}
	return http.StatusOK, written
}

func serverError(w http.ResponseWriter) int {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "server_error"})
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// flushWriter pushes each chunk to the client as it arrives from upstream
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}
