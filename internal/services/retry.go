package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

const defaultMaxRetries = 3

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// retry runs op until it succeeds, fails with an error transient rejects, or
// maxRetries further attempts have been made.
func retry(ctx context.Context, newBO func() backoff.BackOff, maxRetries uint64, transient func(error) bool, op func() error) error {
	if newBO == nil {
		newBO = newBackOff
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newBO(), maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func isTransientStoreError(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
