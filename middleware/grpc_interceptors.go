package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hello-services/logging"
)

// The gRPC interceptors mirror the framed middlewares so both greeter
// transports behave the same.

// UnaryLogging logs every call like LoggingMiddleware.
func UnaryLogging(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = logging.OrNop(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("call failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		log.Debug("call served", fields...)
		return resp, nil
	}
}

// UnaryRateLimit rejects calls over r per second with ResourceExhausted.
func UnaryRateLimit(r float64, burst int) grpc.UnaryServerInterceptor {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, ErrRateLimited)
		}
		return handler(ctx, req)
	}
}

// UnaryRecover turns a handler panic into an Internal status.
func UnaryRecover(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = logging.OrNop(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = status.Errorf(codes.Internal, "internal error: %v", r)
			}
		}()
		return handler(ctx, req)
	}
}
