// Package activitysync tells the remote backend that a user is still active.
// The signal is advisory telemetry: the local idle timeout never depends on
// it, so every failure is reported in the Result and nothing is returned as an
// error.
package activitysync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"studio-session/internal/metrics"
)

// DefaultInterval is the minimum spacing between two syncs for one email.
const DefaultInterval = 60 * time.Second

type Result struct {
	Sent    bool
	Skipped bool
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

type Client struct {
	URL        string
	HTTPClient *http.Client
	Interval   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func New(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Interval:   DefaultInterval,
		limiters:   make(map[string]*rate.Limiter),
		now:        time.Now,
	}
}

type syncBody struct {
	Action string `json:"action"`
	Email  string `json:"email"`
}

// Sync posts the update-activity signal unless one was already sent for
// email within the interval. Best effort: inspect the Result, do not retry.
func (c *Client) Sync(ctx context.Context, email string) Result {
	if c.URL == "" || email == "" {
		return Result{Skipped: true}
	}
	if !c.allow(email) {
		return Result{Skipped: true}
	}

	data, err := json.Marshal(syncBody{Action: "update-activity", Email: email})
	if err != nil {
		return c.fail(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(data))
	if err != nil {
		return c.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return c.fail(fmt.Errorf("send activity: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(fmt.Errorf("send activity: status %d", resp.StatusCode))
	}
	metrics.ActivitySyncs.WithLabelValues("sent").Inc()
	return Result{Sent: true}
}

// Forget drops the rate state for email, typically at logout.
func (c *Client) Forget(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, email)
}

func (c *Client) allow(email string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[email]
	if !ok {
		interval := c.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		l = rate.NewLimiter(rate.Every(interval), 1)
		c.limiters[email] = l
	}
	return l.AllowN(c.now(), 1)
}

func (c *Client) fail(err error) Result {
	metrics.ActivitySyncs.WithLabelValues("failed").Inc()
	return Result{Err: err}
}
