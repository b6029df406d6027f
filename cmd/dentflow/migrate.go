package main

import (
	"fmt"

	"github.com/dcms/dentflow/pkg/database"
	"github.com/dcms/dentflow/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := database.Migrate(db, log); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("db", cfg.Database.Name))
			return nil
		},
	}
}
