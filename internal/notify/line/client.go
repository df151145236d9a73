// Package line integrates the LINE Messaging API: push delivery for
// milestone notifications and the webhook flow that links chat accounts to
// roster members.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/milestone"
)

const (
	pushEndpoint  = "https://api.line.me/v2/bot/message/push"
	replyEndpoint = "https://api.line.me/v2/bot/message/reply"

	requestTimeout = 5 * time.Second
)

var _ milestone.Notifier = (*Client)(nil)

// Client talks to the LINE Messaging API with a channel access token.
type Client struct {
	token string
	http  *http.Client
	log   zerolog.Logger
}

// NewClient creates a push/reply client. Requests are bounded so a slow API
// never backs up into the caller.
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		token: token,
		http:  &http.Client{Timeout: requestTimeout},
		log:   log,
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends a text message to one user.
func (c *Client) Push(ctx context.Context, userID, text string) error {
	body := struct {
		To       string        `json:"to"`
		Messages []textMessage `json:"messages"`
	}{
		To:       userID,
		Messages: []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, pushEndpoint, body)
}

// Reply answers a webhook event using its one-shot reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body := struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []textMessage `json:"messages"`
	}{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, replyEndpoint, body)
}

// SendBulk pushes the same text to every user, one request each. Delivery is
// best-effort; failures are logged per recipient and counted.
func (c *Client) SendBulk(ctx context.Context, userIDs []string, text string) (sent, failed int) {
	for _, id := range userIDs {
		if err := c.Push(ctx, id, text); err != nil {
			c.log.Warn().Err(err).Str("user_id", id).Msg("push failed")
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func (c *Client) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("line api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
