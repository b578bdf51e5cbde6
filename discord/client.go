// Package discord delivers notifications through the Discord REST API:
// a thin bot-token client plus the target resolution and per-session
// thread affinity built on top of it.
package discord

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

	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

const (
	apiBase = "https://discord.com/api/v10"

	// MaxContentLen is the platform ceiling for message content.
	MaxContentLen = 2000
	// MaxThreadNameLen is the platform ceiling for thread names.
	MaxThreadNameLen = 100

	// publicThread is the channel type for the bare thread route.
	publicThread = 11
)

// Client calls the Discord REST API with a bot token. Callers bound
// individual calls with a context deadline; the embedded HTTP timeout
// is only a backstop.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a REST client authenticating as a bot.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: apiBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends content to a channel and returns the created message id.
// Mention parsing is suppressed unless allowMention is set.
func (c *Client) Post(ctx context.Context, channelID, content string, allowMention bool) (string, error) {
	parse := []string{}
	if allowMention {
		parse = []string{"users"}
	}
	payload := map[string]any{
		"content":          clipContent(content),
		"allowed_mentions": map[string]any{"parse": parse},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Edit replaces the content of an existing message.
func (c *Client) Edit(ctx context.Context, channelID, messageID string, content string) error {
	payload := map[string]any{"content": clipContent(content)}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, payload, nil)
}

// ResolveDmChannel opens (or returns the existing) DM channel with a
// user.
func (c *Client) ResolveDmChannel(ctx context.Context, userID string) (string, error) {
	payload := map[string]any{"recipient_id": userID}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateThread creates a thread under a channel and returns its id.
// The primary route anchors the thread to a freshly posted starter
// message; when the server rejects that route's shape the bare thread
// route is tried instead.
func (c *Client) CreateThread(ctx context.Context, parentChannelID, name, starterText string, autoArchiveMinutes int) (string, error) {
	name = clipThreadName(name)
	if autoArchiveMinutes <= 0 {
		autoArchiveMinutes = 1440
	}

	if starterText != "" {
		threadID, err := c.threadFromMessage(ctx, parentChannelID, name, starterText, autoArchiveMinutes)
		if err == nil {
			return threadID, nil
		}
		if !IsWrongEndpoint(err) {
			return "", err
		}
		c.log.Warn("starter-message thread route rejected; trying bare route",
			"channel", parentChannelID, "error", err)
	}
	return c.bareThread(ctx, parentChannelID, name, autoArchiveMinutes)
}

func (c *Client) threadFromMessage(ctx context.Context, parentChannelID, name, starterText string, autoArchiveMinutes int) (string, error) {
	msgID, err := c.Post(ctx, parentChannelID, starterText, false)
	if err != nil {
		return "", err
	}
	payload := map[string]any{
		"name":                  name,
		"auto_archive_duration": autoArchiveMinutes,
	}
	var out struct {
		ID string `json:"id"`
	}
	path := "/channels/" + parentChannelID + "/messages/" + msgID + "/threads"
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) bareThread(ctx context.Context, parentChannelID, name string, autoArchiveMinutes int) (string, error) {
	payload := map[string]any{
		"name":                  name,
		"auto_archive_duration": autoArchiveMinutes,
		"type":                  publicThread,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+parentChannelID+"/threads", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("discord: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("discord: %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("discord: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   method + " " + path,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("discord: decode %s: %w", path, err)
		}
	}
	return nil
}

func clipContent(content string) string {
	return textnorm.Truncate(content, MaxContentLen)
}

func clipThreadName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "session"
	}
	return textnorm.Truncate(name, MaxThreadNameLen)
}
