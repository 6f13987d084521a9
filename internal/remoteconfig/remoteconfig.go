// Package remoteconfig loads the session warning thresholds from the remote
// settings endpoint. Loading never fails: anything unexpected falls back to
// the defaults and is logged.
package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"studio-session/internal/log"
	"studio-session/internal/model"
)

const (
	KeyWarningMinutes = "session_warning_minutes"
	KeyTimeoutMinutes = "session_timeout_minutes"
)

var ErrMalformed = errors.New("malformed config response")

type Client struct {
	URL        string
	HTTPClient *http.Client
	Defaults   model.SessionWarningConfig
	// MaxRetries bounds the retries per key after the first attempt.
	MaxRetries uint64
}

func New(rawURL string, defaults model.SessionWarningConfig) *Client {
	return &Client{
		URL:        rawURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Defaults:   defaults,
		MaxRetries: 2,
	}
}

// LoadWarningConfig fetches both thresholds concurrently. Any failure, a
// non-positive value, or a warning window not shorter than the timeout
// yields the defaults.
func (c *Client) LoadWarningConfig(ctx context.Context) model.SessionWarningConfig {
	defaults := c.Defaults
	if defaults.SessionTimeoutMinutes <= 0 || defaults.WarningMinutes <= 0 {
		defaults = model.DefaultSessionWarningConfig()
	}
	if c.URL == "" {
		return defaults
	}

	var warning, timeout int
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		warning, err = c.fetchMinutes(ctx, KeyWarningMinutes)
		return err
	})
	eg.Go(func() (err error) {
		timeout, err = c.fetchMinutes(ctx, KeyTimeoutMinutes)
		return err
	})
	if err := eg.Wait(); err != nil {
		log.Warn().Err(err).Msg("remoteconfig: using default session thresholds")
		return defaults
	}
	if warning >= timeout {
		log.Warn().Int("warning", warning).Int("timeout", timeout).Msg("remoteconfig: warning window not shorter than timeout, using defaults")
		return defaults
	}
	return model.SessionWarningConfig{WarningMinutes: warning, SessionTimeoutMinutes: timeout}
}

func (c *Client) fetchMinutes(ctx context.Context, key string) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = time.Second

	var minutes int
	err := backoff.Retry(func() error {
		v, err := c.fetchOnce(ctx, key)
		if errors.Is(err, ErrMalformed) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		minutes = v
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return minutes, nil
}

func (c *Client) fetchOnce(ctx context.Context, key string) (int, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrMalformed, resp.StatusCode)
	}
	return parseMinutes(body)
}

func parseMinutes(body []byte) (int, error) {
	if !gjson.ValidBytes(body) {
		return 0, ErrMalformed
	}
	v := gjson.GetBytes(body, "value")
	if !v.Exists() {
		return 0, fmt.Errorf("%w: missing value", ErrMalformed)
	}
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed := gjson.Parse(v.Str)
		if parsed.Type != gjson.Number {
			return 0, fmt.Errorf("%w: value %q", ErrMalformed, v.Str)
		}
		f = parsed.Float()
	default:
		return 0, fmt.Errorf("%w: value type %s", ErrMalformed, v.Type)
	}
	minutes := int(math.Round(f))
	if minutes < 1 || minutes > 24*60 {
		return 0, fmt.Errorf("%w: value %v out of range", ErrMalformed, f)
	}
	return minutes, nil
}
