package storage

import (
	"context"
	"errors"
)

// DefaultMaxAttempts bounds read-modify-write retries
const DefaultMaxAttempts = 8

// Retry runs fn until it returns anything other than a revision mismatch, or
// until attempts are exhausted. fn must re-read the documents it writes.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Failure("retry", ctxErr)
		}
		err = fn()
		if !errors.Is(err, ErrRevisionMismatch) {
			return err
		}
	}
	return err
}
