package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"hello-services/message"
)

const ErrRateLimited = "rate limit exceeded"

// RateLimitMiddleware rejects calls once the token bucket (r per second,
// burst) is empty. It does not queue.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			if !limiter.Allow() {
				return message.ErrorEnvelope(req.ServiceMethod, ErrRateLimited)
			}
			return next(ctx, req)
		}
	}
}
