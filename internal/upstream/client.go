package upstream

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

	"github.com/angeloszaimis/nutrition-proxy/internal/nutrition"
)

const maxResponseBytes = 4 << 20

// Client talks to the provider's generateContent endpoint. It holds no
// per-request state and is safe for concurrent use.
type Client struct {
	cfg       Config
	transport Doer
	sleeper   Sleeper
	logger    *slog.Logger
	observer  Observer
}

// New validates cfg and returns a Client. Zero retry policies and timeout
// fall back to the package defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.TextPolicy == (RetryPolicy{}) {
		cfg.TextPolicy = DefaultTextPolicy
	}
	if cfg.ImagePolicy == (RetryPolicy{}) {
		cfg.ImagePolicy = DefaultImagePolicy
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("upstream: invalid config: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		transport: &http.Client{Timeout: cfg.Timeout},
		sleeper:   timerSleeper{},
		logger:    slog.New(slog.DiscardHandler),
		observer:  nopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Model returns the configured provider model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.cfg.APIKey != ""
}

// EstimateMacros asks the provider for a macro estimate of the described food.
func (c *Client) EstimateMacros(ctx context.Context, q nutrition.TextQuery) (nutrition.MacroResult, error) {
	if err := q.Validate(); err != nil {
		return nutrition.MacroResult{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if !c.HasCredential() {
		return nutrition.MacroResult{}, ErrMissingCredential
	}

	text, err := c.generate(ctx, OpEstimateMacros, c.cfg.TextPolicy, macroRequest(q))
	if err != nil {
		return nutrition.MacroResult{}, err
	}

	res, err := nutrition.DecodeMacroResult(text)
	if err != nil {
		return nutrition.MacroResult{}, malformed(text, err)
	}

	return res, nil
}

// RecognizeImage asks the provider to name the food in an image.
func (c *Client) RecognizeImage(ctx context.Context, q nutrition.ImageQuery) (nutrition.ImageRecognitionResult, error) {
	if err := q.Validate(); err != nil {
		return nutrition.ImageRecognitionResult{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if !c.HasCredential() {
		return nutrition.ImageRecognitionResult{}, ErrMissingCredential
	}
	if q.MIMEType == "" {
		q.MIMEType = nutrition.DefaultImageMIMEType
	}

	text, err := c.generate(ctx, OpRecognizeImage, c.cfg.ImagePolicy, imageRequest(q))
	if err != nil {
		return nutrition.ImageRecognitionResult{}, err
	}

	res, err := nutrition.DecodeImageRecognitionResult(text)
	if err != nil {
		return nutrition.ImageRecognitionResult{}, malformed(text, err)
	}

	return res, nil
}

// Ping fetches the model's metadata once, without retries, and returns the
// provider's status code.
func (c *Client) Ping(ctx context.Context) (int, error) {
	if !c.HasCredential() {
		return 0, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.transport.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return resp.StatusCode, nil
}

// generate runs the retry loop and returns the JSON text embedded in the
// provider's envelope.
func (c *Client) generate(ctx context.Context, op Operation, policy RetryPolicy, body generateContentRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("upstream: encode request: %w", err)
	}

	start := time.Now()
	text, attempts, err := c.retry(ctx, op, policy, payload)
	c.observer.ObserveOutcome(Outcome{
		Operation: op,
		Attempts:  attempts,
		Duration:  time.Since(start),
		Err:       err,
	})

	if err != nil {
		c.logger.Debug("Provider call failed",
			slog.String("operation", string(op)),
			slog.Int("attempts", attempts),
			slog.Any("err", err))
	}

	return text, err
}

func (c *Client) retry(ctx context.Context, op Operation, policy RetryPolicy, payload []byte) (string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		start := time.Now()
		status, body, err := c.send(ctx, payload)
		c.observer.ObserveAttempt(Attempt{
			Operation:  op,
			Number:     attempt,
			StatusCode: status,
			Duration:   time.Since(start),
			Err:        err,
		})

		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			lastErr = &Failure{Kind: KindTransientServerError, StatusCode: status, Body: string(body)}
		case status < http.StatusOK || status >= http.StatusMultipleChoices:
			return "", attempt, &Failure{
				Kind:       KindClientRejected,
				StatusCode: status,
				Body:       string(body),
				Attempts:   attempt,
			}
		default:
			text, err := extractText(body)
			return text, attempt, err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		c.logger.Warn("Provider call failed, retrying",
			slog.String("operation", string(op)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("err", lastErr))

		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return "", attempt, fmt.Errorf("upstream: backoff interrupted: %w", err)
		}
	}

	return "", policy.MaxAttempts, &Failure{
		Kind:     KindRetriesExhausted,
		Attempts: policy.MaxAttempts,
		Err:      lastErr,
	}
}

// send performs one exchange. A non-nil error means no usable response.
func (c *Client) send(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL(), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.transport.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("Provider responded",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)))

	return resp.StatusCode, body, nil
}

func (c *Client) modelURL() string {
	return c.cfg.BaseURL + "/models/" + url.PathEscape(c.cfg.Model)
}

func (c *Client) generateURL() string {
	return c.modelURL() + ":generateContent"
}
