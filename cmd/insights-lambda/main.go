// Lambda entry point behind API Gateway. The same verification and dispatch
// path as the HTTP server runs here, with a synchronous runner: Lambda
// freezes the process after the response, so the assistant turn must finish
// before the webhook is acknowledged.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/finsight/insights-bot/pkg/assistant"
	"github.com/finsight/insights-bot/pkg/config"
	"github.com/finsight/insights-bot/pkg/dynamodb"
	"github.com/finsight/insights-bot/pkg/handler"
	slackclient "github.com/finsight/insights-bot/pkg/slack"
)

type app struct {
	events *handler.EventHandler
	logger *slog.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.ThreadStoreBackend != config.BackendDynamoDB {
		return nil, fmt.Errorf("lambda deployments require THREAD_STORE_BACKEND=%s", config.BackendDynamoDB)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ddb, err := dynamodb.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init dynamodb: %w", err)
	}
	store := dynamodb.NewThreadRepository(ddb, cfg.ThreadsTable)

	asst := assistant.NewClient(cfg.OpenAIAPIKey, cfg.AssistantID, logger,
		assistant.WithBaseURL(cfg.OpenAIBaseURL),
		assistant.WithPollPolicy(assistant.PollPolicy{
			Interval:    cfg.RunPollInterval(),
			MaxAttempts: cfg.RunPollMaxAttempts,
		}),
	)
	messenger := slackclient.NewClient(cfg.SlackBotToken, logger)

	eh := handler.NewEventHandler(cfg.SlackSigningSecret, cfg.SlackAppID,
		messenger, asst, store, handler.NewSyncRunner(logger), logger)

	return &app{events: eh, logger: logger}, nil
}

// Handle adapts one API Gateway proxy request onto the shared HTTP handler.
func (a *app) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/slack/events",
		bytes.NewReader([]byte(request.Body)))
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}
	req.Header.Set("X-Slack-Request-Timestamp", headerValue(request.Headers, "X-Slack-Request-Timestamp"))
	req.Header.Set("X-Slack-Signature", headerValue(request.Headers, "X-Slack-Signature"))

	w := newResponseCapture()
	a.events.HandleEvent(w, req)

	return events.APIGatewayProxyResponse{
		StatusCode: w.status,
		Body:       w.body.String(),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

// responseCapture is a minimal http.ResponseWriter buffering the handler's
// reply so it can be repackaged as a proxy response.
type responseCapture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseCapture() *responseCapture {
	return &responseCapture{header: make(http.Header), status: http.StatusOK}
}

func (w *responseCapture) Header() http.Header { return w.header }

func (w *responseCapture) WriteHeader(status int) { w.status = status }

func (w *responseCapture) Write(p []byte) (int, error) { return w.body.Write(p) }

// headerValue looks a header up under both canonical and lowercase keys.
// API Gateway HTTP APIs lowercase all header names.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	return headers[strings.ToLower(name)]
}

func main() {
	a, err := newApp(context.Background())
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	lambda.Start(a.Handle)
}
