package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

// maxAttempts bounds startup connection retries.
const maxAttempts = 5

func retry(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = time.Minute
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil {
			logger.Warnf("attempt %d/%d: failed to connect to %s: %v", attempt, maxAttempts, name, err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
}
