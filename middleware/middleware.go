// Package middleware wraps framed RPC handlers (and gRPC unary handlers)
// with cross-cutting behavior: logging, timeouts, rate limiting and panic
// recovery.
package middleware

import (
	"context"

	"hello-services/message"
)

// HandlerFunc serves one request envelope.
type HandlerFunc func(ctx context.Context, req *message.Envelope) *message.Envelope

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one runs outermost:
// Chain(A, B)(h) == A(B(h)).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
