package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finsight/insights-bot/pkg/models"
	slackclient "github.com/finsight/insights-bot/pkg/slack"
	"github.com/finsight/insights-bot/pkg/threadstore"
)

// injectContextPrompt frames an injected message as system-originated
// conversation context rather than a user utterance. No run is started, so
// the assistant sees it on the user's next turn.
const injectContextPrompt = "The following message was sent to the user by the operations team. " +
	"Treat it as context for future questions; do not respond to it directly:\n\n%s"

// InjectHandler is the out-of-band message injection endpoint. It resolves a
// username to a DM channel, delivers the message (optionally with a
// pre-rendered chart image), and records the message in the user's
// conversation history without soliciting an assistant turn.
type InjectHandler struct {
	messenger Messenger
	assistant Assistant
	store     threadstore.Store
	runner    Runner
	logger    *slog.Logger
}

// NewInjectHandler creates a new injection handler.
func NewInjectHandler(messenger Messenger, asst Assistant, store threadstore.Store, runner Runner, logger *slog.Logger) *InjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InjectHandler{
		messenger: messenger,
		assistant: asst,
		store:     store,
		runner:    runner,
		logger:    logger,
	}
}

// RegisterRoutes attaches the handler's endpoints to the mux.
func (h *InjectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/inject", h.HandleInject)
}

// HandleInject runs the injection sequence. Any panic or unclassified error
// maps to a generic 500 with no internal detail.
func (h *InjectHandler) HandleInject(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("injection handler panicked", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, models.InjectResponse{
				Success: false,
				Error:   "Internal server error",
			})
		}
	}()

	req, err := h.parseRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.InjectResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	correlationID := models.NewCorrelationID()
	h.logger.Info("processing injection",
		"correlation_id", correlationID, "username", req.Username)

	resp, status := h.inject(r.Context(), req, correlationID)
	writeJSON(w, status, resp)
}

// parseRequest accepts either a JSON body ({"username","message",...}) or a
// plain text body carrying the message, with the username in the query
// string. The query parameter wins when both are present.
func (h *InjectHandler) parseRequest(r *http.Request) (models.InjectRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return models.InjectRequest{}, errors.New("invalid request body")
	}

	var req models.InjectRequest
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &req); err != nil {
			return models.InjectRequest{}, errors.New("invalid JSON body")
		}
	} else {
		req.Message = trimmed
	}

	if username := r.URL.Query().Get("username"); username != "" {
		req.Username = username
	}
	req.Username = strings.TrimPrefix(strings.TrimSpace(req.Username), "@")

	if req.Username == "" {
		return models.InjectRequest{}, errors.New("username is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return models.InjectRequest{}, errors.New("message is required")
	}

	return req, nil
}

func (h *InjectHandler) inject(ctx context.Context, req models.InjectRequest, correlationID string) (models.InjectResponse, int) {
	userID, err := h.messenger.LookupUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, slackclient.ErrUserNotFound) {
			h.logger.Info("injection target not found",
				"correlation_id", correlationID, "username", req.Username)
			return models.InjectResponse{Success: false, Error: "User not found"}, http.StatusNotFound
		}
		h.logger.Error("user lookup failed", "correlation_id", correlationID, "error", err)
		return models.InjectResponse{Success: false, Error: "Internal server error"}, http.StatusInternalServerError
	}

	channelID, err := h.messenger.OpenDM(ctx, userID)
	if err != nil {
		h.logger.Error("failed to open DM channel",
			"correlation_id", correlationID, "user", userID, "error", err)
		return models.InjectResponse{Success: false, Error: "Failed to open conversation"}, http.StatusInternalServerError
	}

	if err := h.messenger.SendNotice(ctx, channelID, "Update from the team", req.Message); err != nil {
		h.logger.Error("failed to deliver injected message",
			"correlation_id", correlationID, "channel", channelID, "error", err)
		return models.InjectResponse{Success: false, Error: "Failed to deliver message"}, http.StatusInternalServerError
	}

	// Chart delivery is best-effort: the text message already landed.
	if len(req.ChartImage) > 0 {
		h.deliverChart(ctx, channelID, req, correlationID)
	}

	if err := h.recordInHistory(ctx, userID, req.Message, correlationID); err != nil {
		h.logger.Error("failed to record injection in conversation history",
			"correlation_id", correlationID, "user", userID, "error", err)
		return models.InjectResponse{Success: false, Error: "Internal server error"}, http.StatusInternalServerError
	}

	h.logger.Info("injection delivered",
		"correlation_id", correlationID, "user", userID, "channel", channelID)

	return models.InjectResponse{
		Success:   true,
		Message:   "Message delivered",
		UserID:    userID,
		ChannelID: channelID,
	}, http.StatusOK
}

func (h *InjectHandler) deliverChart(ctx context.Context, channelID string, req models.InjectRequest, correlationID string) {
	filename := req.ChartFilename
	if filename == "" {
		filename = "chart.png"
	}
	fileID, err := h.messenger.UploadImage(ctx, channelID, req.ChartImage, filename, req.ChartTitle)
	if err != nil {
		h.logger.Error("failed to upload chart",
			"correlation_id", correlationID, "channel", channelID, "error", err)
		return
	}
	if err := h.messenger.VerifyUpload(ctx, fileID); err != nil {
		h.logger.Error("chart upload not verified",
			"correlation_id", correlationID, "file_id", fileID, "error", err)
	}
}

// recordInHistory resolves the user's thread synchronously, creating it on
// first contact, then detaches the context append. Only the append itself is
// fire-and-forget; a resolution failure is the caller's to report. No run is
// started.
func (h *InjectHandler) recordInHistory(ctx context.Context, userID, message, correlationID string) error {
	threadID, ok, err := h.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		thread, err := h.assistant.CreateThread(ctx)
		if err != nil {
			return err
		}
		if err := h.store.Set(ctx, userID, thread.ID); err != nil {
			return err
		}
		threadID = thread.ID
		h.logger.Info("created thread for injection target",
			"correlation_id", correlationID, "user", userID, "thread_id", threadID)
	}

	h.runner.Go("inject-append", func(ctx context.Context) {
		prompt := fmt.Sprintf(injectContextPrompt, message)
		if _, err := h.assistant.AppendMessage(ctx, threadID, prompt); err != nil {
			h.logger.Error("failed to append injected context",
				"correlation_id", correlationID, "thread_id", threadID, "error", err)
		}
	})

	return nil
}
