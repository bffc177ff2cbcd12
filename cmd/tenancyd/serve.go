package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/api"
	"github.com/aisgo/ais-tenancy/cache"
	"github.com/aisgo/ais-tenancy/cascade"
	"github.com/aisgo/ais-tenancy/conf"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/middleware"
	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/mq/kafka"
	"github.com/aisgo/ais-tenancy/tenancy"
	grpcserver "github.com/aisgo/ais-tenancy/transport/grpc"
	httpserver "github.com/aisgo/ais-tenancy/transport/http"
)

func newServeCommand(load func() (*conf.App, error)) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			opts := []fx.Option{baseOptions(cfg), serveOptions(cfg)}
			if migrateFirst {
				opts = append(opts, fx.Invoke(migrate))
			}
			fx.New(opts...).Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "create or update tables before serving")
	return cmd
}

func serveOptions(cfg *conf.App) fx.Option {
	directory := tenancy.DirectoryModule
	if cfg.Redis.Enabled {
		directory = cache.Module
	}

	opts := []fx.Option{
		tenancy.Module,
		directory,
		model.Module,
		filestore.Module,
		outbox.Module,
		cascade.Module,
		fx.Provide(
			middleware.NewActorVerifier,
			middleware.NewTenantResolver,
		),
		httpserver.Module,
		grpcserver.Module,
		api.Module,
	}
	if cfg.Kafka.Enabled {
		opts = append(opts, kafka.Module)
	}
	return fx.Options(opts...)
}
