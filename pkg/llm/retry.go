package llm

import (
	"context"
	"errors"
	"time"
)

// DefaultBackoff is the fixed retry schedule this system commits to: wait
// 5s after the first failure, 10s after the second, then give up. Index i
// of the slice is the wait before attempt i+2.
var DefaultBackoff = []time.Duration{5 * time.Second, 10 * time.Second}

// CallWithRetry runs fn up to len(backoff)+1 times, sleeping backoff[i]
// between attempt i+1 and i+2. It only retries errors wrapping ErrTransport
// or ErrParse; any other error returns immediately, since those represent
// a bug in the caller's request construction rather than a transient
// provider hiccup.
func CallWithRetry(ctx context.Context, backoff []time.Duration, fn func(ctx context.Context) (*Response, error)) (*Response, error) {
	var lastErr error
	attempts := len(backoff) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !errors.Is(err, ErrTransport) && !errors.Is(err, ErrParse) {
			return nil, &CallError{Attempts: attempt + 1, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, &CallError{Attempts: attempt + 1, Err: ctx.Err()}
		case <-time.After(backoff[attempt]):
		}
	}

	return nil, &CallError{Attempts: attempts, Err: lastErr}
}
