package upstream

import (
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	DefaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel        = "gemini-2.0-flash"
	DefaultTimeout      = 30 * time.Second
	DefaultInitialDelay = time.Second

	// MaxAttempts bounds any retry policy.
	MaxAttempts = 10
	// MaxDelay caps a single backoff wait.
	MaxDelay = 10 * time.Minute
)

// RetryPolicy bounds the attempts of one call. The delay before the second
// attempt is InitialDelay and doubles before every later one.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

var (
	DefaultTextPolicy  = RetryPolicy{MaxAttempts: 5, InitialDelay: DefaultInitialDelay}
	DefaultImagePolicy = RetryPolicy{MaxAttempts: 3, InitialDelay: DefaultInitialDelay}
)

// Delay returns the wait after the given failed attempt (1-based). It
// saturates at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		if d >= MaxDelay/2 {
			return MaxDelay
		}
		d *= 2
	}
	return min(d, MaxDelay)
}

func (p RetryPolicy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(1), validation.Max(MaxAttempts)),
		validation.Field(&p.InitialDelay, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Config is everything the client needs to reach the provider. An empty APIKey
// is allowed; calls then fail with ErrMissingCredential.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	TextPolicy  RetryPolicy
	ImagePolicy RetryPolicy
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.TextPolicy),
		validation.Field(&c.ImagePolicy),
	)
}

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Client)

func WithTransport(d Doer) Option {
	return func(c *Client) {
		c.transport = d
	}
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}
