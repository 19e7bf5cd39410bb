package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryMiddleware resends an exchange up to maxRetries times with exponential
// backoff, but only after errors whose Temporary method reports true. For the
// bundled transports that is a refused connection, where the request never reached
// the server. Timeouts and RPC errors are never retried.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			reply, err := next(ctx, payload)
			for i := 0; i < maxRetries && retryable(err); i++ {
				delay := baseDelay * time.Duration(1<<i)
				logger.Debug("retrying exchange", zap.Int("attempt", i+1), zap.Duration("delay", delay), zap.Error(err))

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, err
				case <-timer.C:
				}
				reply, err = next(ctx, payload)
			}
			return reply, err
		}
	}
}

func retryable(err error) bool {
	var t interface{ Temporary() bool }
	return err != nil && errors.As(err, &t) && t.Temporary()
}
