package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hello-services/logging"
	"hello-services/message"
)

// RecoverMiddleware turns a panic in next into an error envelope.
func RecoverMiddleware(log *zap.Logger) Middleware {
	log = logging.OrNop(log)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) (resp *message.Envelope) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic", zap.String("method", req.ServiceMethod), zap.Any("panic", r))
					resp = message.ErrorEnvelope(req.ServiceMethod, fmt.Sprintf("internal error: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
