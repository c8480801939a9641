// Package api provides HTTP handlers for the support agent API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"deskagent/internal/agent"
	"deskagent/internal/config"
	"deskagent/internal/domain"
	"deskagent/internal/store"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// MessageRequest is the body of POST /api/messages.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Message   string `json:"message"`
}

// MessageResponse is the terminal outcome returned to the caller.
type MessageResponse struct {
	Reply   string `json:"reply"`
	TraceID string `json:"trace_id"`
}

// Handler handles support message requests.
type Handler struct {
	orchestrator *agent.Orchestrator
	repo         store.Repository
	rateLimiter  *RateLimiter
	maxBodySize  int64
}

// NewHandler creates the message handler.
func NewHandler(orchestrator *agent.Orchestrator, repo store.Repository, cfg *config.Config) *Handler {
	rateLimitRequests := 10
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		maxBodySize = cfg.MaxRequestBodySize
	}

	return &Handler{
		orchestrator: orchestrator,
		repo:         repo,
		rateLimiter:  NewRateLimiter(rateLimitRequests, rateLimitWindow),
		maxBodySize:  maxBodySize,
	}
}

// HandleMessage handles POST /api/messages: upserts the sender, runs
// the message through the decision loop and returns the terminal reply.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	// Rate-limit by user_id only, not user_id:session_id, so clients
	// cannot bypass throttling by rotating session IDs.
	if !h.rateLimiter.Allow(req.UserID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if req.UserName == "" {
		req.UserName = "User"
	}
	if req.UserEmail == "" {
		req.UserEmail = "user@example.com"
	}

	user := &domain.User{
		ID:      req.UserID,
		Name:    req.UserName,
		Email:   req.UserEmail,
		Profile: map[string]string{"notes": "auto-created"},
	}
	if err := h.repo.UpsertUser(r.Context(), user); err != nil {
		slog.Error("Failed to upsert user", "user_id", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save user")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Support message received",
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"message_length", len(req.Message),
		"request_id", reqID,
	)

	result, err := h.orchestrator.HandleMessage(r.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		slog.Error("Failed to handle message",
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"error", err,
		)
		Error(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	JSON(w, http.StatusOK, MessageResponse{Reply: result.Reply, TraceID: result.TraceID})
}

// RegisterRoutes registers the message routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/messages", h.HandleMessage)
}
