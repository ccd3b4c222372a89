// Package slack implements the outbound messaging collaborator over the
// Slack Web API.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// ErrUserNotFound is returned by LookupUserByUsername when no directory
// entry matches.
var ErrUserNotFound = errors.New("slack: user not found")

// errUploadPending marks a verify attempt where the API answered but the
// file was not yet available.
var errUploadPending = errors.New("slack: uploaded file not yet available")

const thinkingText = "_Thinking..._"

// Client wraps the Slack SDK client for use throughout the application.
type Client struct {
	client *slack.Client
	logger *slog.Logger
}

// NewClient creates a new Slack client with a bot token.
func NewClient(botToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: slack.New(botToken),
		logger: logger,
	}
}

// SendText posts a plain text message to a channel.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	_, _, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// SendNotice posts a Block Kit message with a bold title section, a body
// section, and a context footer.
func (c *Client) SendNotice(ctx context.Context, channelID, title, text string) error {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*"+title+"*", false, false),
			nil, nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
	_, _, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("post blocks: %w", err)
	}
	return nil
}

// SendTyping posts the transient thinking indicator and returns its message
// timestamp so it can be deleted once the real reply is ready.
func (c *Client) SendTyping(ctx context.Context, channelID string) (string, error) {
	_, ts, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(thinkingText, false))
	if err != nil {
		return "", fmt.Errorf("post typing indicator: %w", err)
	}
	return ts, nil
}

// DeleteMessage removes a previously posted message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	_, _, err := c.client.DeleteMessageContext(ctx, channelID, messageTS)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// LookupUserByUsername resolves a Slack username or display name to a user
// id. Matching is case-insensitive.
func (c *Client) LookupUserByUsername(ctx context.Context, username string) (string, error) {
	users, err := c.client.GetUsersContext(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	needle := strings.ToLower(username)
	for _, u := range users {
		if u.Deleted {
			continue
		}
		if strings.ToLower(u.Name) == needle ||
			strings.ToLower(u.Profile.DisplayName) == needle {
			return u.ID, nil
		}
	}

	return "", ErrUserNotFound
}

// OpenDM opens (or resumes) a direct-message channel with a user and returns
// the channel id.
func (c *Client) OpenDM(ctx context.Context, userID string) (string, error) {
	channel, _, _, err := c.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", fmt.Errorf("open conversation: %w", err)
	}
	return channel.ID, nil
}

// UploadImage uploads an image buffer to a channel and returns the file id.
func (c *Client) UploadImage(ctx context.Context, channelID string, image []byte, filename, title string) (string, error) {
	summary, err := c.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:   bytes.NewReader(image),
		FileSize: len(image),
		Filename: filename,
		Title:    title,
		Channel:  channelID,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return summary.ID, nil
}

// VerifyUpload polls file info with bounded retries until Slack reports the
// upload as available.
func (c *Client) VerifyUpload(ctx context.Context, fileID string) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		file, _, _, err := c.client.GetFileInfoContext(ctx, fileID, 0, 0)
		if err != nil {
			lastErr = err
			continue
		}
		if file != nil && file.ID == fileID {
			return nil
		}
		lastErr = errUploadPending
	}
	return fmt.Errorf("verify upload %s: %w", fileID, lastErr)
}
