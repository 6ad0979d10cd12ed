package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Client adapts the Telegram Bot API to the chat platform port.
//
// Telegram's Bot API cannot read arbitrary messages back, but digest
// messages are always pinned, so FetchMessage answers from the chat's
// pinned message. A digest id that is no longer the pinned message reads
// as not found, which restarts the digest; acceptable for this platform.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

var _ ports.ChatPlatform = (*Client)(nil)

// New authenticates against the Bot API.
func New(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}, nil
}

// ResolveChannel accepts a numeric chat ID.
func (c *Client) ResolveChannel(_ context.Context, _ string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, err := strconv.ParseInt(ref, 10, 64); err != nil {
		return "", fmt.Errorf("no valid chat id in %q", ref)
	}
	return ref, nil
}

// ResolveRole returns the ref unchanged; Telegram has no role objects, so
// configured values are rendered as plain mentions.
func (c *Client) ResolveRole(_ context.Context, _ string, ref string) (string, error) {
	return strings.TrimSpace(ref), nil
}

// Send posts a message, rendering an Announcement as formatted text.
func (c *Client) Send(ctx context.Context, channelID, content string, embed *ports.Announcement) (string, error) {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	text := content
	if embed != nil {
		text = renderAnnouncement(content, embed)
	}

	sent, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// FetchMessage returns the chat's pinned message when it matches the id.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (ports.Message, error) {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return ports.Message{}, err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return ports.Message{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.Message{}, fmt.Errorf("rate limit wait: %w", err)
	}

	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return ports.Message{}, fmt.Errorf("get chat: %w", err)
	}

	pinned := chat.PinnedMessage
	if pinned == nil || pinned.MessageID != msgID {
		return ports.Message{}, domain.ErrNotFound
	}
	return ports.Message{ID: messageID, Content: pinned.Text}, nil
}

// Edit replaces a message's text.
func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, msgID, content)); err != nil {
		return mapNotFound(fmt.Errorf("edit message: %w", err), err)
	}
	return nil
}

// Pin pins a message without notifying the chat.
func (c *Client) Pin(ctx context.Context, channelID, messageID string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err = c.api.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		MessageID:           msgID,
		DisableNotification: true,
	})
	if err != nil {
		return fmt.Errorf("pin message: %w", err)
	}
	return nil
}

// Unpin removes a pin; a missing message is reported as domain.ErrNotFound.
func (c *Client) Unpin(ctx context.Context, channelID, messageID string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err = c.api.Request(tgbotapi.UnpinChatMessageConfig{
		ChatID:    chatID,
		MessageID: msgID,
	})
	if err != nil {
		return mapNotFound(fmt.Errorf("unpin message: %w", err), err)
	}
	return nil
}

func renderAnnouncement(content string, embed *ports.Announcement) string {
	var b strings.Builder
	if content != "" {
		b.WriteString(content)
		b.WriteString("\n")
	}
	if embed.RoleID != "" {
		b.WriteString("@" + embed.RoleID + "\n")
	}
	b.WriteString(embed.Title)
	if embed.Description != "" {
		b.WriteString("\n" + embed.Description)
	}
	if embed.Body != "" {
		b.WriteString("\n\n" + embed.Body)
	}
	return b.String()
}

// mapNotFound converts Telegram's "message ... not found" errors to the
// sentinel callers treat as a no-op.
func mapNotFound(wrapped, cause error) error {
	if strings.Contains(strings.ToLower(cause.Error()), "not found") {
		return domain.ErrNotFound
	}
	return wrapped
}

func parseChatID(channelID string) (int64, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	return id, nil
}

func parseMessageID(messageID string) (int, error) {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	return id, nil
}
