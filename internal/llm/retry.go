package llm

import (
	"context"
	"errors"
	"time"
)

// Retrying bounds every call with a timeout and retries failures with exponential backoff.
type Retrying struct {
	next    Generator
	timeout time.Duration
	retries int
	backoff time.Duration
}

func NewRetrying(next Generator, timeout time.Duration, retries int, backoff time.Duration) *Retrying {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	return &Retrying{next: next, timeout: timeout, retries: retries, backoff: backoff}
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	tries := r.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		out, err := r.call(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		// the caller gave up; a retry cannot succeed
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < tries-1 {
			select {
			case <-time.After(r.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

func (r *Retrying) call(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.next.Generate(cctx, prompt)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &TimeoutError{After: r.timeout, Err: err}
	}
	return out, err
}

// TimeoutError reports a single model call that exceeded its deadline.
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return "llm call timed out after " + e.After.String() + ": " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }
