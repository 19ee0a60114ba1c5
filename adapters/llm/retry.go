package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// RetryPolicy bounds calls to a remote model. Only transient transport failures
// are retried; a reply that parses badly is never regenerated.
type RetryPolicy struct {
	Attempts  int
	Timeout   time.Duration
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Timeout: 20 * time.Second, BaseDelay: 500 * time.Millisecond}
}

// Do calls fn until it succeeds, returns a permanent error, or attempts run out.
// Each attempt gets its own timeout; the delay doubles between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := p.once(ctx, fn)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == attempts {
			return "", attempt, err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		}
		delay *= 2
	}
	return "", attempts, lastErr
}

func (p RetryPolicy) once(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporary failure",
	"eof",
	"timeout",
	"deadline exceeded",
	"resource_exhausted",
	"unavailable",
	"internal error",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// IsTransient reports whether err looks like a network, timeout, throttling or
// server-side failure worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
