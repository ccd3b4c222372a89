// Package handler contains the webhook verification gate, the event
// dispatcher that drives assistant turns, and the manual-injection endpoint.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/finsight/insights-bot/pkg/assistant"
	"github.com/finsight/insights-bot/pkg/models"
	"github.com/finsight/insights-bot/pkg/threadstore"
)

const apologyText = "Sorry, something went wrong while I was thinking about that. Please try again."

// Messenger is the outbound messaging collaborator consumed by the handlers.
type Messenger interface {
	SendText(ctx context.Context, channelID, text string) error
	SendNotice(ctx context.Context, channelID, title, text string) error
	SendTyping(ctx context.Context, channelID string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageTS string) error
	LookupUserByUsername(ctx context.Context, username string) (string, error)
	OpenDM(ctx context.Context, userID string) (string, error)
	UploadImage(ctx context.Context, channelID string, image []byte, filename, title string) (string, error)
	VerifyUpload(ctx context.Context, fileID string) error
}

// Assistant is the conversation backend collaborator.
type Assistant interface {
	CreateThread(ctx context.Context) (assistant.Thread, error)
	AppendMessage(ctx context.Context, threadID, text string) (assistant.Message, error)
	StartRun(ctx context.Context, threadID string) (assistant.Run, error)
	AwaitCompletion(ctx context.Context, threadID, runID string) (assistant.Run, error)
	LatestReply(ctx context.Context, threadID string) (string, error)
}

// EventHandler verifies, classifies, and dispatches inbound Slack events.
type EventHandler struct {
	signingSecret string
	appID         string
	messenger     Messenger
	assistant     Assistant
	store         threadstore.Store
	runner        Runner
	logger        *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(signingSecret, appID string, messenger Messenger, asst Assistant, store threadstore.Store, runner Runner, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		signingSecret: signingSecret,
		appID:         appID,
		messenger:     messenger,
		assistant:     asst,
		store:         store,
		runner:        runner,
		logger:        logger,
	}
}

// RegisterRoutes attaches the handler's endpoints to the mux.
func (h *EventHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealthCheck)
	mux.HandleFunc("POST /slack/events", h.HandleEvent)
}

func (h *EventHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleEvent is the webhook entry point. The request moves through
// verification, classification, and filtering; anything that survives is
// acknowledged with 200 and continues on the background runner.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")

	if h.signingSecret == "" || timestamp == "" || signature == "" {
		h.logger.Error("missing signature headers or signing secret")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing signature headers"})
		return
	}
	if !IsFresh(timestamp) {
		h.logger.Error("stale request timestamp", "timestamp", timestamp)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stale timestamp"})
		return
	}
	if !VerifySignature(body, timestamp, signature, h.signingSecret) {
		h.logger.Error("invalid request signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var envelope models.EventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.logger.Error("failed to parse event envelope", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event format"})
		return
	}

	switch envelope.Kind() {
	case models.KindHandshake:
		if envelope.Challenge == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing challenge"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return

	case models.KindEventCallback:
		h.dispatchEvent(r.Context(), w, envelope)
		return

	default:
		// Unrecognized envelope types are acknowledged and dropped.
		h.logger.Info("ignoring envelope type", "type", envelope.Type)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
}

// dispatchEvent filters the event and, for a processable DM, posts the
// thinking indicator, acknowledges the webhook, and detaches the turn.
func (h *EventHandler) dispatchEvent(ctx context.Context, w http.ResponseWriter, envelope models.EventEnvelope) {
	event := envelope.Event
	if !event.ShouldProcess(h.appID) {
		h.logger.Info("ignoring event",
			"event_type", event.Type, "channel", event.Channel, "hidden", event.Hidden)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	correlationID := models.NewCorrelationID()
	h.logger.Info("processing direct message",
		"correlation_id", correlationID, "user", event.User, "channel", event.Channel)

	// The indicator is sent before the acknowledgment so its timestamp is in
	// hand for later deletion. A failure here is not fatal to the turn.
	thinkingTS, err := h.messenger.SendTyping(ctx, event.Channel)
	if err != nil {
		h.logger.Error("failed to send thinking indicator",
			"correlation_id", correlationID, "error", err)
		thinkingTS = ""
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	// Everything past this point runs after the HTTP cycle; its outcome is
	// never observed by the webhook caller.
	h.runner.Go("assistant-turn", func(ctx context.Context) {
		h.processTurn(ctx, event, thinkingTS, correlationID)
	})
}

// processTurn resolves the user's thread and drives one assistant turn:
// append, run, poll, fetch, deliver. Failures become a best-effort apology.
func (h *EventHandler) processTurn(ctx context.Context, event models.Event, thinkingTS, correlationID string) {
	reply, err := h.runTurn(ctx, event, correlationID)

	if thinkingTS != "" {
		if err := h.messenger.DeleteMessage(ctx, event.Channel, thinkingTS); err != nil {
			h.logger.Error("failed to delete thinking indicator",
				"correlation_id", correlationID, "error", err)
		}
	}

	if err != nil {
		h.logger.Error("assistant turn failed", "correlation_id", correlationID,
			"user", event.User, "error", err)
		if sendErr := h.messenger.SendText(ctx, event.Channel, apologyText); sendErr != nil {
			h.logger.Error("failed to send apology",
				"correlation_id", correlationID, "error", sendErr)
		}
		return
	}

	if err := h.messenger.SendText(ctx, event.Channel, reply); err != nil {
		// The HTTP cycle is long closed; delivery failure is logged, not retried.
		h.logger.Error("failed to deliver reply",
			"correlation_id", correlationID, "error", err)
		return
	}

	h.logger.Info("delivered assistant reply",
		"correlation_id", correlationID, "user", event.User)
}

func (h *EventHandler) runTurn(ctx context.Context, event models.Event, correlationID string) (string, error) {
	threadID, err := h.resolveThread(ctx, event.User)
	if err != nil {
		return "", err
	}

	if _, err := h.assistant.AppendMessage(ctx, threadID, event.Text); err != nil {
		return "", err
	}

	run, err := h.assistant.StartRun(ctx, threadID)
	if err != nil {
		return "", err
	}

	if _, err := h.assistant.AwaitCompletion(ctx, threadID, run.ID); err != nil {
		return "", err
	}

	reply, err := h.assistant.LatestReply(ctx, threadID)
	if err != nil {
		return "", err
	}

	h.logger.Info("assistant turn completed",
		"correlation_id", correlationID, "thread_id", threadID, "run_id", run.ID)
	return reply, nil
}

// resolveThread returns the user's thread id, creating and recording a new
// thread on first contact. All callers share the same store instance, which
// is what keeps the at-most-one-thread-per-user invariant.
func (h *EventHandler) resolveThread(ctx context.Context, userID string) (string, error) {
	threadID, ok, err := h.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if ok {
		return threadID, nil
	}

	thread, err := h.assistant.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := h.store.Set(ctx, userID, thread.ID); err != nil {
		return "", err
	}

	h.logger.Info("created thread for user", "user", userID, "thread_id", thread.ID)
	return thread.ID, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
