/**
 * @description
 * This package provides a minimal client for delivering ledger notifications
 * to a Discord-compatible webhook. Delivery is best-effort: the notifier
 * worker calls it off the critical path with a bounded context.
 *
 * @dependencies
 * - bytes, encoding/json, net/http: Standard Go libraries.
 */

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts JSON payloads to a single webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a webhook client for the given URL.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type payload struct {
	Content string `json:"content"`
}

// Deliver posts one message. Non-2xx responses are reported as errors so the
// notifier can log them; nothing is retried.
func (c *Client) Deliver(ctx context.Context, kind, message string) error {
	body, err := json.Marshal(payload{Content: fmt.Sprintf("[%s] %s", kind, message)})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
