package provider

import (
	"context"
	"fmt"
	"math"
	"time"
)

const baseBackoff = 500 * time.Millisecond

// attemptFunc performs one request.
type attemptFunc func(ctx context.Context) (*Response, error)

// withRetry runs attempt, retrying rate-limited and transient failures with
// exponential backoff up to s.maxRetries times.
func (s settings) withRetry(ctx context.Context, name string, attempt attemptFunc) (*Response, error) {
	var lastErr error
	for i := 0; i <= s.maxRetries; i++ {
		if i > 0 {
			backoff := s.baseBackoff * time.Duration(math.Pow(2, float64(i-1)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%s: waiting for rate limiter: %w", name, err)
		}

		resp, err := attempt(ctx)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	if s.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s API request failed after %d attempts: %w", name, s.maxRetries+1, lastErr)
}
