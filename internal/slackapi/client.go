package slackapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// Client wraps the Slack Web API surface mailpeek needs: posting and
// updating replies, opening DM channels and modals, and fetching file
// metadata. Downloads live in download.go.
type Client struct {
	api    *slack.Client
	http   *http.Client
	token  string
	logger *slog.Logger
}

func New(log *slog.Logger, botToken string) *Client {
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		api:    slack.New(botToken, slack.OptionHTTPClient(httpClient)),
		http:   httpClient,
		token:  botToken,
		logger: log.With(slog.String("component", "slackapi")),
	}
}

// PostMessage posts a threaded block reply and returns its timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, fallback string, blocks []slack.Block) (string, error) {
	opts := []slack.MsgOption{
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

// PostText posts a plain threaded text reply.
func (c *Client) PostText(ctx context.Context, channelID, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// UpdateMessage replaces the blocks of an existing reply in place.
func (c *Client) UpdateMessage(ctx context.Context, channelID, ts, fallback string, blocks []slack.Block) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// PostDM opens (or reuses) the IM channel with userID and posts text there.
func (c *Client) PostDM(ctx context.Context, userID, text string) error {
	channel, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel.ID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post dm: %w", err)
	}
	return nil
}

// OpenNotice opens a small informational modal for the interaction that
// produced triggerID.
func (c *Client) OpenNotice(ctx context.Context, triggerID, title, body string) error {
	view := slack.ModalViewRequest{
		Type:  slack.ViewType("modal"),
		Title: slack.NewTextBlockObject(slack.PlainTextType, title, false, false),
		Close: slack.NewTextBlockObject(slack.PlainTextType, "Close", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil),
		}},
	}
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("open view: %w", err)
	}
	return nil
}

// FileInfo fetches current file metadata, including share locations once
// the platform has attached them.
func (c *Client) FileInfo(ctx context.Context, fileID string) (*slack.File, error) {
	file, _, _, err := c.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("file info: %w", err)
	}
	return file, nil
}
