package middleware

import (
	"context"
	"time"
)

// TimeOutMiddleware bounds each exchange by timeout. Transports honour the ctx
// deadline, so an expired exchange fails with transport.KindTimeout.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if timeout <= 0 {
				return next(ctx, payload)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, payload)
		}
	}
}
