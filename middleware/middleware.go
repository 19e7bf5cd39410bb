// Package middleware wraps a transport's Exchange with caller-side policy:
// logging, timeouts, rate limiting and opt-in retries.
package middleware

import (
	"context"
	"io"

	"mini-jsonrpc/transport"
)

// HandlerFunc has the shape of transport.Transport.Exchange.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Wrap returns a transport that runs every exchange through middlewares before t.
// Close is forwarded to t when it implements io.Closer.
func Wrap(t transport.Transport, middlewares ...Middleware) transport.Transport {
	if len(middlewares) == 0 {
		return t
	}
	return &wrapped{
		inner:   t,
		handler: Chain(middlewares...)(t.Exchange),
	}
}

type wrapped struct {
	inner   transport.Transport
	handler HandlerFunc
}

func (w *wrapped) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	return w.handler(ctx, payload)
}

func (w *wrapped) Close() error {
	if c, ok := w.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
