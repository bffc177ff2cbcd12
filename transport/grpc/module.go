package grpc

import (
	"go.uber.org/fx"
	"google.golang.org/grpc"
)

// Module 提供 *grpc.Server；服务注册由调用方通过 fx.Invoke 完成
var Module = fx.Module("grpc",
	fx.Provide(NewServer),
	fx.Invoke(func(*grpc.Server) {}),
)
