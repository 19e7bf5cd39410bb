package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"mini-jsonrpc/transport"
)

// RateLimitMiddleware paces exchanges with a token bucket of r tokens per second.
// Callers wait for a token; a ctx that ends first fails the exchange without
// sending anything.
func RateLimitMiddleware(r float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, transport.Classify("rate limit", "", ctx.Err())
				}
				// Wait refuses up front when the deadline is too close for a token.
				return nil, &transport.Error{Kind: transport.KindTimeout, Op: "rate limit", Err: err}
			}
			return next(ctx, payload)
		}
	}
}
