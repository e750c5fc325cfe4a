// Package api provides HTTP handlers for the orchestrator.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/router"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxWebhookBodySize caps the webhook request body (1MB).
const maxWebhookBodySize = 1 << 20

// EventProcessor consumes classified webhook events.
type EventProcessor interface {
	Handle(ctx context.Context, ev linear.Event) router.Result
}

// Handler serves the webhook endpoint and diagnostics.
type Handler struct {
	processor      EventProcessor
	repo           store.Repository
	webhookSecret  string
	processTimeout time.Duration
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(processor EventProcessor, repo store.Repository, webhookSecret string, processTimeout time.Duration) *Handler {
	if processTimeout <= 0 {
		processTimeout = 5 * time.Minute
	}
	return &Handler{
		processor:      processor,
		repo:           repo,
		webhookSecret:  webhookSecret,
		processTimeout: processTimeout,
	}
}

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

// RegisterRoutes registers the webhook, diagnostics, and metrics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/linear", h.HandleWebhook)
	r.Get("/api/sessions", h.HandleListSessions)
	r.Handle("/metrics", promhttp.Handler())
}

// HandleWebhook verifies and parses an inbound Linear webhook, then
// acknowledges immediately. The event is processed on a background
// goroutine so the agent's first activity lands within Linear's
// response window regardless of how long generation calls take.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	signature := r.Header.Get("Linear-Signature")
	if !linear.VerifySignature(h.webhookSecret, body, signature) {
		slog.Warn("Webhook signature verification failed")
		Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var ev linear.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	deliveryID := r.Header.Get("Linear-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	slog.Info("Webhook received", "delivery_id", deliveryID, "type", ev.Type, "action", ev.Action)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
		defer cancel()

		result := h.processor.Handle(ctx, ev)
		if !result.Success {
			slog.Warn("Event processing failed", "delivery_id", deliveryID, "message", result.Message)
			return
		}
		if !result.Ignored {
			slog.Info("Event processed", "delivery_id", deliveryID, "message", result.Message)
		}
	}()

	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleListSessions returns all persisted sessions, for diagnostics.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context())
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}
