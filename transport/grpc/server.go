package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/middleware"
	"github.com/aisgo/ais-tenancy/tenancy"
)

/* ========================================================================
 * gRPC Server
 * ========================================================================
 * 职责: 服务间调用入口；拦截器链 recovery -> logging -> tenant
 * 说明: actor 与目标租户通过 metadata 传递，键名与 HTTP 请求头一致
 * ======================================================================== */

const maxMsgSize = 16 * 1024 * 1024

// Config gRPC 配置
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Port    int  `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
}

// ServerParams 依赖参数
type ServerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Config   Config
	Logger   *logger.Logger
	Tenancy  tenancy.Config
	Resolver *tenancy.Resolver
	Verifier *middleware.ActorVerifier `optional:"true"`
}

// NewServer 创建 gRPC Server 并管理生命周期
func NewServer(p ServerParams) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(p.Logger),
			loggingInterceptor(p.Logger),
			TenantInterceptor(p.Verifier, p.Resolver, p.Tenancy),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)

	if !p.Config.Enabled {
		return s
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.Config.Port))
			if err != nil {
				return fmt.Errorf("failed to bind gRPC port %d: %w", p.Config.Port, err)
			}
			go func() {
				p.Logger.Info("starting gRPC server", zap.Int("port", p.Config.Port))
				if err := s.Serve(ln); err != nil {
					p.Logger.Error("gRPC server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping gRPC server")
			stopped := make(chan struct{})
			go func() {
				s.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				p.Logger.Warn("gRPC graceful stop timed out, forcing stop", zap.Error(ctx.Err()))
				s.Stop()
				return ctx.Err()
			}
		},
	})
	return s
}
