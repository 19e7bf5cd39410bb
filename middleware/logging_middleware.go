package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-jsonrpc/message"
)

// LoggingMiddleware logs every exchange at debug level: method and id before it is
// sent, duration and failure after. With verbose set the raw reply is logged too.
func LoggingMiddleware(logger *zap.Logger, verbose bool) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if !logger.Core().Enabled(zap.DebugLevel) {
				return next(ctx, payload)
			}

			fields := describe(payload)
			logger.Debug("rpc request", fields...)

			start := time.Now()
			reply, err := next(ctx, payload)
			fields = append(fields, zap.Duration("duration", time.Since(start)))
			if err != nil {
				logger.Debug("rpc failed", append(fields, zap.Error(err))...)
				return reply, err
			}
			if verbose {
				fields = append(fields, zap.ByteString("response", reply))
			}
			logger.Debug("rpc response", fields...)
			return reply, nil
		}
	}
}

// describe extracts method and id from an outgoing payload without failing on
// anything it cannot parse.
func describe(payload []byte) []zap.Field {
	if message.IsBatch(payload) {
		reqs, err := message.ParseBatchRequest(nil, payload)
		if err != nil {
			return []zap.Field{zap.String("method", "batch")}
		}
		methods := make([]string, len(reqs))
		for i, r := range reqs {
			methods[i] = r.Method
		}
		return []zap.Field{zap.String("method", "batch"), zap.Int("size", len(reqs)), zap.Strings("methods", methods)}
	}

	req, err := message.ParseRequest(nil, payload)
	if err != nil {
		return []zap.Field{zap.Int("bytes", len(payload))}
	}
	if req.IsNotification() {
		return []zap.Field{zap.String("method", req.Method), zap.Bool("notification", true)}
	}
	return []zap.Field{zap.String("method", req.Method), zap.Stringer("id", *req.ID)}
}

