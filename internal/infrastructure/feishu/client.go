package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FeedDigest/internal/ports"
)

// Client posts encoded messages to a custom bot webhook.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

var _ ports.WebhookSender = (*Client)(nil)

// NewClient registers the webhook endpoint. Every Send is bounded by timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// webhookReply covers both reply shapes the webhook uses.
type webhookReply struct {
	Code       *int   `json:"code"`
	Msg        string `json:"msg"`
	StatusCode *int   `json:"StatusCode"`
	StatusMsg  string `json:"StatusMessage"`
}

// Send issues exactly one POST. A non-2xx status, a transport error or a
// reply body carrying a non-zero code is a failure.
func (c *Client) Send(ctx context.Context, body []byte) error {
	if c == nil || c.endpoint == "" || c.client == nil {
		return fmt.Errorf("webhook client misconfigured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(reply)))
	}

	var parsed webhookReply
	if len(bytes.TrimSpace(reply)) > 0 && json.Unmarshal(reply, &parsed) == nil {
		if parsed.Code != nil && *parsed.Code != 0 {
			return fmt.Errorf("webhook rejected message: code %d: %s", *parsed.Code, parsed.Msg)
		}
		if parsed.StatusCode != nil && *parsed.StatusCode != 0 {
			return fmt.Errorf("webhook rejected message: status %d: %s", *parsed.StatusCode, parsed.StatusMsg)
		}
	}

	return nil
}
