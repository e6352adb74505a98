// Package httpclient implements ports.BotStore on top of the bot record REST
// API, the transport the editor uses when the bots live in a remote platform.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/google/uuid"
)

// RevisionHeader carries the save revision id of an instance write.
const RevisionHeader = "X-Revision"

// Client talks to the bot record API:
//
//	GET    /api/bots            list ids
//	GET    /api/bots/{id}       load a bot
//	PUT    /api/bots/{id}       create or replace a bot
//	DELETE /api/bots/{id}       delete a bot
//	PUT    /api/bots/{id}/instance  replace the graph
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/api/bots/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rev, ok := ports.RevisionFrom(ctx); ok {
		req.Header.Set(RevisionHeader, rev)
	} else if method == http.MethodPut {
		req.Header.Set(RevisionHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Bot API call",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"revision", req.Header.Get(RevisionHeader),
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrBotNotFound
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Load fetches a bot record.
func (c *Client) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	var bot domain.Bot
	if err := c.do(ctx, http.MethodGet, c.url(botID), nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

// SaveInstance sends the complete graph.
func (c *Client) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	return c.do(ctx, http.MethodPut, c.url(botID, "instance"), instance, nil)
}

// Put creates or replaces a bot record.
func (c *Client) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("bot id cannot be empty")
	}
	return c.do(ctx, http.MethodPut, c.url(bot.ID), bot, nil)
}

// Delete removes a bot record.
func (c *Client) Delete(ctx context.Context, botID string) error {
	err := c.do(ctx, http.MethodDelete, c.url(botID), nil, nil)
	if err == domain.ErrBotNotFound {
		return nil
	}
	return err
}

// List returns the ids of all bots.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/bots", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
