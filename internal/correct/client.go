package correct

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Client corrects a single chunk, retrying transient failures a fixed number
// of times before giving up.
type Client struct {
	completer   Completer
	maxAttempts int
	retryDelay  time.Duration
}

func NewClient(completer Completer) *Client {
	return &Client{
		completer:   completer,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// CorrectChunk sends one chunk for proofreading. A blank response counts as a
// failure. After maxAttempts failures the last error is returned wrapped in a
// ServiceError; context cancellation aborts immediately.
func (c *Client) CorrectChunk(ctx context.Context, chunk string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		start := time.Now()
		corrected, err := c.completer.Complete(ctx, systemInstruction, chunk)
		if err == nil && strings.TrimSpace(corrected) == "" {
			err = errEmptyResponse
		}
		if err == nil {
			log.Printf("correct: chunk corrected, attempt=%d chars=%d took=%s",
				attempt, len(chunk), time.Since(start).Round(time.Millisecond))
			return corrected, nil
		}

		lastErr = err
		log.Printf("correct: attempt %d/%d failed for chunk of %d chars: %v",
			attempt, c.maxAttempts, len(chunk), err)

		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", &ServiceError{Attempts: c.maxAttempts, Err: lastErr}
}

var errEmptyResponse = errors.New("model returned an empty response")
