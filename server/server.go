// Package server exposes the chat agent over HTTP: a synchronous JSON chat
// endpoint, a token-streaming SSE endpoint, and small health and config
// endpoints for frontends and probes.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/logging"
)

// Runner answers a prompt in one shot.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// StreamRunner answers a prompt as a fragment stream. Failures arrive in-band
// as fragments, never as a second return value.
type StreamRunner interface {
	RunStreaming(ctx context.Context, prompt string) <-chan core.Fragment
}

// Options configure the HTTP server.
type Options struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// PublicConfig is what GET /config reports. Never put secrets here.
	PublicConfig map[string]any
	// Logger receives request logs.
	Logger logging.Logger
}

// Server routes chat requests to the agent runners.
type Server struct {
	runner   Runner
	streamer StreamRunner
	opts     Options
}

// New creates the server. runner handles /chat, streamer handles
// /chat/stream; they are typically two graphs over the same model and
// registry.
func New(runner Runner, streamer StreamRunner, optFns ...func(o *Options)) *Server {
	opts := Options{
		CORSOrigins:  []string{"*"},
		PublicConfig: map[string]any{},
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{runner: runner, streamer: streamer, opts: opts}
}

// Handler returns the fully wired http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)
	return s.withCORS(s.withLogging(mux))
}

type chatRequest struct {
	UserPrompt string `json:"user_prompt"`
	// Model is accepted for wire compatibility but not consulted; the
	// serving model is fixed at startup.
	Model string `json:"model,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := s.runner.Run(r.Context(), req.UserPrompt)
	if err != nil {
		s.opts.Logger.Error("chat.failed", "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fragments := s.streamer.RunStreaming(r.Context(), req.UserPrompt)
	for fragment := range fragments {
		var werr error
		if fragment.Err != nil {
			werr = sse.WriteError(fragment.Err.Error())
		} else {
			werr = sse.WriteContent(fragment.Text)
		}
		if werr != nil {
			// Client went away; stop writing but drain so the agent
			// goroutine can finish.
			s.opts.Logger.Debug("chat.stream.client_gone", "error", werr.Error())
			for range fragments {
			}
			return
		}
	}
	if err := sse.WriteDone(); err != nil {
		s.opts.Logger.Debug("chat.stream.client_gone", "error", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.PublicConfig)
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "user_prompt is required")
		return req, false
	}
	return req, true
}

// statusWriter captures the status code for request logging while keeping
// Flush available for SSE.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.opts.Logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
