package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Client talks to the Discord REST API. All outbound calls pass a shared
// rate limiter; Discord enforces its own per-route buckets on top.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
	limiter *rate.Limiter
}

var _ ports.ChatPlatform = (*Client)(nil)

// New registers the bot token and builds a reusable HTTP client.
func New(token string) *Client {
	return &Client{
		token:   token,
		apiBase: defaultAPIBase,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// ResolveChannel accepts a raw channel ID or a <#id> mention.
func (c *Client) ResolveChannel(_ context.Context, _ string, ref string) (string, error) {
	id := stripMention(ref, "<#", ">")
	if !isSnowflake(id) {
		return "", fmt.Errorf("no valid channel in %q", ref)
	}
	return id, nil
}

// ResolveRole accepts a raw role ID or a <@&id> mention.
func (c *Client) ResolveRole(_ context.Context, _ string, ref string) (string, error) {
	id := stripMention(ref, "<@&", ">")
	if !isSnowflake(id) {
		return "", fmt.Errorf("no valid role in %q", ref)
	}
	return id, nil
}

type messagePayload struct {
	Content string         `json:"content,omitempty"`
	Nonce   string         `json:"nonce,omitempty"`
	Embeds  []embedPayload `json:"embeds,omitempty"`
}

type embedPayload struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Send posts a message. An Announcement renders as an embed with the role
// mention (if any) in the plain content, so the mention actually pings.
func (c *Client) Send(ctx context.Context, channelID, content string, embed *ports.Announcement) (string, error) {
	payload := messagePayload{Content: content}

	if embed != nil {
		payload.Nonce = embed.Nonce
		if embed.RoleID != "" {
			payload.Content = strings.TrimSpace(payload.Content + " <@&" + embed.RoleID + ">")
		}
		payload.Embeds = []embedPayload{{
			Title:       embed.Title,
			Description: embed.Description,
			Color:       embed.Color,
			Fields:      []embedField{{Name: "Summary", Value: embed.Body}},
		}}
	}

	var resp messageResponse
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// FetchMessage retrieves a message; a missing one yields domain.ErrNotFound.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (ports.Message, error) {
	var resp messageResponse
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return ports.Message{}, err
	}
	return ports.Message{ID: resp.ID, Content: resp.Content}, nil
}

// Edit replaces a message's content.
func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPatch, path, messagePayload{Content: content}, nil); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Pin pins a message in its channel.
func (c *Client) Pin(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/pins/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("pin message: %w", err)
	}
	return nil
}

// Unpin removes a pin; a missing message yields domain.ErrNotFound.
func (c *Client) Unpin(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/pins/%s", channelID, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func stripMention(ref, prefix, suffix string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, prefix) && strings.HasSuffix(ref, suffix) {
		return ref[len(prefix) : len(ref)-len(suffix)]
	}
	return ref
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
