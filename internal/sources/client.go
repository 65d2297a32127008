package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxProviderBody = 4 << 20

// client posts JSON to the provider proxy with a per-attempt timeout, a
// token-bucket limiter and bounded exponential retry. Only
// ProviderUnavailable failures are retried.
type client struct {
	source  venues.Source
	http    *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter

	maxRetries   uint64
	retryInitial time.Duration

	observe ObserveFunc
	logger  *zap.SugaredLogger
}

func newClient(source venues.Source, cfg Config, logger *zap.SugaredLogger) *client {
	return &client{
		source:       source,
		http:         &http.Client{},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:   cfg.MaxRetries,
		retryInitial: cfg.RetryInitialInterval,
		observe:      cfg.Observe,
		logger:       logger,
	}
}

func (c *client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.source, err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInitial
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(shared.Wrap(shared.ErrProviderUnavailable, "%s: %v", c.source, err))
		}
		return c.attempt(ctx, path, payload, out)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warnw("provider call failed, retrying",
			"source", c.source,
			"path", path,
			"wait", wait,
			"error", err.Error(),
		)
	}

	return backoff.RetryNotify(op, policy, notify)
}

func (c *client) attempt(ctx context.Context, path string, payload []byte, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(c.source, outcomeOf(err), time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build %s request: %w", c.source, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return shared.Wrap(shared.ErrProviderUnavailable, "%s %s: %v", c.source, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderBody))
		err := shared.Wrap(shared.ErrProviderUnavailable, "%s %s: status %d", c.source, path, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderBody)).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return shared.Wrap(shared.ErrProviderUnavailable, "%s %s: %v", c.source, path, err)
		}
		return backoff.Permanent(shared.Wrap(shared.ErrMalformedProviderPayload, "%s %s: %v", c.source, path, err))
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrMalformedProviderPayload):
		return "malformed"
	default:
		return "unavailable"
	}
}
