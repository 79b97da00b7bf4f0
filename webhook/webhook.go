// Package webhook notifies external endpoints when a crawl job ends.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Event types.
const (
	EventCompleted   = "crawl.completed"
	EventInterrupted = "crawl.interrupted"
	EventFailed      = "crawl.failed"
)

// SignatureHeader carries "sha256=<hex>" of the HMAC of the body.
const SignatureHeader = "X-SteelCrawl-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Client delivers events. The zero value is not usable; use NewClient.
type Client struct {
	http *resty.Client

	// Delays are waited before each attempt; len(Delays) is the attempt
	// count.
	Delays []time.Duration

	wg sync.WaitGroup
}

// NewClient returns a client making four attempts: at once, then after
// 1s, 5s and 30s.
func NewClient(timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "SteelCrawl-Webhook/1.0")
	client.SetHeader("Content-Type", "application/json")
	return &Client{
		http:   client,
		Delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// HTTPClient exposes the underlying resty client, for transports in tests.
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends one event once. The body is signed when secret is set.
func (c *Client) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := c.http.R().SetContext(ctx).SetBody(body)
	if secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(body, secret))
	}
	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode())
	}
	return nil
}

// DeliverAsync sends an event in the background, retrying per Delays.
func (c *Client) DeliverAsync(url, secret string, event *Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for attempt, delay := range c.Delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := c.Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}

// Wait blocks until every pending DeliverAsync has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}
