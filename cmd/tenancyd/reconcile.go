package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/conf"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/mq/kafka"
	httpserver "github.com/aisgo/ais-tenancy/transport/http"
)

// reconcile 只运行 outbox 补偿循环，HTTP 端口仅暴露健康检查与指标
func newReconcileCommand(load func() (*conf.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Retry file deletion tags that failed during cascades",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fx.New(baseOptions(cfg), reconcileOptions(cfg)).Run()
			return nil
		},
	}
}

func reconcileOptions(cfg *conf.App) fx.Option {
	opts := []fx.Option{
		filestore.Module,
		outbox.Module,
		outbox.ReconcilerModule,
		httpserver.Module,
	}
	if cfg.Kafka.Enabled {
		opts = append(opts, kafka.Module)
	}
	return fx.Options(opts...)
}
