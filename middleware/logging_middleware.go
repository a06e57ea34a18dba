package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hello-services/logging"
	"hello-services/message"
)

// LoggingMiddleware logs the method, duration and error of every call.
func LoggingMiddleware(log *zap.Logger) Middleware {
	log = logging.OrNop(log)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.ServiceMethod),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Failed() {
				log.Warn("call failed", append(fields, zap.String("error", resp.Error))...)
				return resp
			}
			log.Debug("call served", fields...)
			return resp
		}
	}
}
