package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/conf"
	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/tenancy"
)

func newMigrateCommand(load func() (*conf.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tenancy tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app := fx.New(baseOptions(cfg), migrateOptions())
			if err := app.Start(context.Background()); err != nil {
				return err
			}
			return app.Stop(context.Background())
		},
	}
}

func migrateOptions() fx.Option {
	return fx.Options(
		fx.Provide(tenancy.NewGormDirectory, outbox.NewStore),
		fx.Invoke(migrate),
	)
}

func migrate(db *gorm.DB, dir *tenancy.GormDirectory, store *outbox.Store, log *logger.Logger) error {
	if err := dir.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate tenant directory: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate hierarchy: %w", err)
	}
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate pending file tags: %w", err)
	}
	log.Info("schema migrated", zap.Strings("tables", append(model.ScopedTables(), model.GlobalTables()...)))
	return nil
}
