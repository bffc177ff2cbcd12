package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/aisgo/ais-tenancy/conf"
	"github.com/aisgo/ais-tenancy/database"
	"github.com/aisgo/ais-tenancy/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rc := &cobra.Command{
		Use:           "tenancyd",
		Short:         "Multi-tenant hierarchy service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/tenancyd.yaml", "configuration file to read from")

	load := func() (*conf.App, error) { return conf.Load(configPath) }
	rc.AddCommand(newServeCommand(load))
	rc.AddCommand(newReconcileCommand(load))
	rc.AddCommand(newMigrateCommand(load))
	return rc
}

// baseOptions 所有子命令共用的配置、日志与数据库
func baseOptions(cfg *conf.App) fx.Option {
	return fx.Options(
		conf.Module(cfg),
		fx.Provide(logger.NewLogger),
		fx.WithLogger(func(l *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		database.Module,
	)
}
