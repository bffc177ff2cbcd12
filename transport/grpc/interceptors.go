package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/middleware"
	"github.com/aisgo/ais-tenancy/tenancy"
)

const slowCall = 500 * time.Millisecond

func recoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(ctx).Error("gRPC panic recovered",
					zap.Any("panic", r),
					zap.String("method", info.FullMethod),
					zap.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		switch {
		case err != nil:
			log.WithContext(ctx).Warn("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		case duration > slowCall:
			log.WithContext(ctx).Warn("gRPC slow request",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
			)
		}
		return resp, err
	}
}

// TenantInterceptor 校验 metadata 中的 actor 并绑定租户
// 没有 actor 的调用不绑定租户
func TenantInterceptor(verifier *middleware.ActorVerifier, resolver *tenancy.Resolver, cfg tenancy.Config) grpc.UnaryServerInterceptor {
	cfg = cfg.WithDefaults()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		get := func(key string) string {
			if v := md.Get(key); len(v) > 0 {
				return v[0]
			}
			return ""
		}

		if !verifier.Enabled() || resolver == nil || get(middleware.HeaderActorSignature) == "" {
			return handler(ctx, req)
		}

		claims, err := verifier.VerifyHeader(get)
		if err != nil {
			return nil, errors.ToGRPCError(err)
		}

		var resp any
		err = resolver.Bind(ctx, claims.Actor(cfg.OperatorRoles), get(cfg.TenantHeader), func(tctx context.Context) error {
			var herr error
			resp, herr = handler(tctx, req)
			return herr
		})
		if _, ok := errors.AsBizError(err); ok {
			return nil, errors.ToGRPCError(err)
		}
		return resp, err
	}
}
