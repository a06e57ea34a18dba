package middleware

import (
	"context"
	"time"

	"hello-services/message"
)

const ErrTimeout = "request timed out"

// TimeOutMiddleware answers with ErrTimeout when next does not return within
// timeout. next keeps running in the background with a cancelled context.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Envelope, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.ErrorEnvelope(req.ServiceMethod, ErrTimeout)
			}
		}
	}
}
