// Package server exposes the agent over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/konecto/actuator-agent/engine"
)

// Agent is the conversational surface the server fronts.
type Agent interface {
	Run(ctx context.Context, message, conversationID string) *engine.Result
}

// HealthReporter answers readiness questions about the retrieval backends.
type HealthReporter interface {
	SemanticAvailable() bool
}

// Config carries the server wiring.
type Config struct {
	Agent          Agent
	Health         HealthReporter
	MetricsHandler http.Handler
	Logger         *slog.Logger
	AllowAnyOrigin bool
}

// Server routes conversation requests to the agent.
type Server struct {
	agent    Agent
	health   HealthReporter
	metrics  http.Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		agent:   cfg.Agent,
		health:  cfg.Health,
		metrics: cfg.MetricsHandler,
		logger:  logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Post("/conversation", s.handleConversation)
	r.Get("/conversation/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

type conversationRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type conversationResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	semantic := false
	if s.health != nil {
		semantic = s.health.SemanticAvailable()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"semantic_search": semantic,
	})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message must not be empty"})
		return
	}

	result := s.agent.Run(r.Context(), req.Message, req.ConversationID)
	writeJSON(w, http.StatusOK, conversationResponse{
		Response:       result.Response,
		ConversationID: result.ConversationID,
	})
}

// handleWebSocket runs a message-per-frame conversation. The first reply
// establishes the conversation id and later frames reuse it unless the
// client sends its own.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var conversationID string
	for {
		var req conversationRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			if err := conn.WriteJSON(map[string]string{"error": "message must not be empty"}); err != nil {
				return
			}
			continue
		}
		if req.ConversationID != "" {
			conversationID = req.ConversationID
		}

		result := s.agent.Run(r.Context(), req.Message, conversationID)
		conversationID = result.ConversationID
		if err := conn.WriteJSON(conversationResponse{
			Response:       result.Response,
			ConversationID: result.ConversationID,
		}); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
