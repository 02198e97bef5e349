package provider

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 60 * time.Second

// Option configures a provider adapter.
type Option func(*settings)

type settings struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter
}

func newSettings(baseURL string, opts []Option) settings {
	s := settings{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseBackoff: baseBackoff,
		limiter:     rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithBaseURL overrides the API endpoint (useful for testing and proxies).
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithMaxRetries sets how many times a rate-limited or transient failure is
// retried. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		if n < 0 {
			n = 0
		}
		s.maxRetries = n
	}
}

// WithBackoff sets the delay before the first retry; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(s *settings) { s.baseBackoff = d }
}

// WithRateLimit paces outgoing requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *settings) { s.limiter = rate.NewLimiter(r, burst) }
}
