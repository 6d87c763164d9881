package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/datazip-inc/kinspect/utils/logger"
)

// RetryExec runs function until it succeeds, returns an error marked with
// Permanent, or the retry budget is spent. Waits grow exponentially from
// initialDelay. The last error is returned on failure, or the context error
// if ctx ends first.
func RetryExec(ctx context.Context, function func() error, retries int, initialDelay time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialDelay
	policy.MaxElapsedTime = 0

	var budget backoff.BackOff = backoff.WithMaxRetries(policy, uint64(max(retries, 0)))
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return function()
	}, backoff.WithContext(budget, ctx), func(err error, wait time.Duration) {
		logger.Debugf("attempt %d failed, retrying in %s: %s", attempt, wait, err)
	})
}

// Permanent marks err so RetryExec stops immediately and returns err as is.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
