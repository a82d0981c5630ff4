package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete readings by asset name prefix",
	Long: `Delete readings whose asset name starts with the given prefix.
Intended to clean up rows inserted by the seed command.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	// Purge-specific flags
	purgeCmd.Flags().String("asset-prefix", "MOCK", "asset name prefix to delete")
	purgeCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	purgeCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	purgeCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	purgeCmd.Flags().String("db-password", "", "PostgreSQL password")
	purgeCmd.Flags().String("db-name", "thermal", "PostgreSQL database name")
	purgeCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")

	// Bind flags to viper
	_ = viper.BindPFlag("purge.asset_prefix", purgeCmd.Flags().Lookup("asset-prefix"))
	_ = viper.BindPFlag("purge.db.host", purgeCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("purge.db.port", purgeCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("purge.db.user", purgeCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("purge.db.password", purgeCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("purge.db.name", purgeCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("purge.db.sslmode", purgeCmd.Flags().Lookup("db-sslmode"))
}

func runPurge(_ *cobra.Command, _ []string) error {
	logger := GetLogger()

	prefix := viper.GetString("purge.asset_prefix")
	if prefix == "" {
		return errors.New("asset prefix cannot be empty")
	}

	db, err := ingest.NewDB(&ingest.DBConfig{
		Host:     viper.GetString("purge.db.host"),
		Port:     viper.GetInt("purge.db.port"),
		User:     viper.GetString("purge.db.user"),
		Password: viper.GetString("purge.db.password"),
		DBName:   viper.GetString("purge.db.name"),
		SSLMode:  viper.GetString("purge.db.sslmode"),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer func() { _ = ingest.CloseDB(db, logger) }()

	store, err := ingest.NewGormStore(db, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		return err
	}

	deleted, err := store.DeleteByAssetPrefix(context.Background(), prefix)
	if err != nil {
		logger.Error("failed to delete readings", "prefix", prefix, "error", err)
		return err
	}

	logger.Info("purge complete", "prefix", prefix, "deleted", deleted)
	return nil
}
