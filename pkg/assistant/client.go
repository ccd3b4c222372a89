// Package assistant wraps the thread-based assistant API: create thread,
// append message, start run, poll the run to a terminal state, fetch the
// latest reply. Callers receive typed errors and never need to inspect the
// underlying transport failure.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// RunStatus is the remote run state machine as observed by this system.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
)

// Terminal reports whether the status ends polling. requires_action is not
// terminal here: tool calls are never fulfilled by this system, so polling
// continues until the remote side moves the run or the attempt budget runs out.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Thread is a remote conversation context.
type Thread struct {
	ID string `json:"id"`
}

// Message is one message appended to a thread.
type Message struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Run is one execution pass of the assistant over a thread.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}

// PollPolicy bounds AwaitCompletion. MaxAttempts == 0 means unbounded.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy polls every second for up to two minutes.
var DefaultPollPolicy = PollPolicy{
	Interval:    time.Second,
	MaxAttempts: 120,
}

// Client calls the assistant backend with a fixed assistant identity.
type Client struct {
	apiKey      string
	assistantID string
	baseURL     string
	poll        PollPolicy
	logger      *slog.Logger
	client      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPollPolicy overrides the run poll policy.
func WithPollPolicy(p PollPolicy) Option {
	return func(c *Client) {
		c.poll = p
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a new assistant client.
func NewClient(apiKey, assistantID string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		apiKey:      apiKey,
		assistantID: assistantID,
		baseURL:     defaultBaseURL,
		poll:        DefaultPollPolicy,
		logger:      logger,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateThread creates a new empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &thread); err != nil {
		c.logger.Error("failed to create thread", "error", err)
		return Thread{}, &ThreadCreateError{Err: err}
	}
	return thread, nil
}

// AppendMessage appends a user-role message to the thread.
func (c *Client) AppendMessage(ctx context.Context, threadID, text string) (Message, error) {
	body := map[string]any{
		"role":    "user",
		"content": text,
	}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, &msg); err != nil {
		c.logger.Error("failed to append message", "thread_id", threadID, "error", err)
		return Message{}, &MessageAppendError{ThreadID: threadID, Err: err}
	}
	return msg, nil
}

// StartRun starts an assistant run over the thread's messages.
func (c *Client) StartRun(ctx context.Context, threadID string) (Run, error) {
	body := map[string]any{
		"assistant_id": c.assistantID,
	}
	var run Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &run); err != nil {
		c.logger.Error("failed to start run", "thread_id", threadID, "error", err)
		return Run{}, &RunCreateError{ThreadID: threadID, Err: err}
	}
	return run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
		c.logger.Error("failed to get run status", "thread_id", threadID, "run_id", runID, "error", err)
		return Run{}, &RunStatusError{ThreadID: threadID, RunID: runID, Err: err}
	}
	return run, nil
}

// AwaitCompletion polls GetRun until the run completes, fails terminally, or
// the poll policy's attempt budget is exhausted. The sleep between checks is
// context-aware and never blocks other requests.
func (c *Client) AwaitCompletion(ctx context.Context, threadID, runID string) (Run, error) {
	attempts := 0
	lastStatus := StatusQueued
	for {
		run, err := c.GetRun(ctx, threadID, runID)
		if err != nil {
			return Run{}, err
		}
		attempts++
		lastStatus = run.Status

		switch {
		case run.Status == StatusCompleted:
			return run, nil
		case run.Status.Terminal():
			err := &RunFailedError{ThreadID: threadID, RunID: runID, Status: run.Status}
			c.logger.Error("run ended in terminal failure",
				"thread_id", threadID, "run_id", runID, "status", string(run.Status))
			return Run{}, err
		}

		if c.poll.MaxAttempts > 0 && attempts >= c.poll.MaxAttempts {
			err := &RunTimeoutError{ThreadID: threadID, RunID: runID, Attempts: attempts, LastStatus: lastStatus}
			c.logger.Error("run polling exhausted",
				"thread_id", threadID, "run_id", runID, "attempts", attempts, "last_status", string(lastStatus))
			return Run{}, err
		}

		select {
		case <-ctx.Done():
			return Run{}, &RunStatusError{ThreadID: threadID, RunID: runID, Err: ctx.Err()}
		case <-time.After(c.poll.Interval):
		}
	}
}

type threadMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type messageList struct {
	Data []threadMessage `json:"data"`
}

// LatestReply returns the text of the most recent assistant-authored message
// in the thread. The list is requested newest-first; the first assistant
// message with a text content block wins.
func (c *Client) LatestReply(ctx context.Context, threadID string) (string, error) {
	var list messageList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc", nil, &list); err != nil {
		c.logger.Error("failed to list thread messages", "thread_id", threadID, "error", err)
		return "", &ReplyFetchError{ThreadID: threadID, Err: err}
	}

	for _, msg := range list.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text.Value, nil
			}
		}
		// Newest assistant message has no text block (image-only reply).
		break
	}

	c.logger.Error("no assistant reply found", "thread_id", threadID)
	return "", ErrNoReply
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// do performs one API call, attaching auth and API-version headers.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("api error: %s (%s)", apiErr.Error.Message, apiErr.Error.Type)
		}
		return fmt.Errorf("api error: %d - %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
