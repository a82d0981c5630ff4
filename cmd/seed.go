package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/thermal-ingest/internal/ingest"
	"procodus.dev/thermal-ingest/pkg/generator"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert synthetic readings",
	Long: `Insert synthetic thermal readings for local development.
Seeded asset names carry a fixed prefix so they can be removed later
with the purge command.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	// Seed-specific flags
	seedCmd.Flags().Int("cameras", 3, "number of fake cameras")
	seedCmd.Flags().Int("readings", 20, "readings per camera")
	seedCmd.Flags().Duration("spacing", 10*time.Minute, "time between consecutive readings")
	seedCmd.Flags().String("asset-prefix", "MOCK", "asset name prefix for seeded rows")
	seedCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	seedCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	seedCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	seedCmd.Flags().String("db-password", "", "PostgreSQL password")
	seedCmd.Flags().String("db-name", "thermal", "PostgreSQL database name")
	seedCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")

	// Bind flags to viper
	_ = viper.BindPFlag("seed.cameras", seedCmd.Flags().Lookup("cameras"))
	_ = viper.BindPFlag("seed.readings", seedCmd.Flags().Lookup("readings"))
	_ = viper.BindPFlag("seed.spacing", seedCmd.Flags().Lookup("spacing"))
	_ = viper.BindPFlag("seed.asset_prefix", seedCmd.Flags().Lookup("asset-prefix"))
	_ = viper.BindPFlag("seed.db.host", seedCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("seed.db.port", seedCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("seed.db.user", seedCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("seed.db.password", seedCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("seed.db.name", seedCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("seed.db.sslmode", seedCmd.Flags().Lookup("db-sslmode"))
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("seeding synthetic readings")

	db, err := ingest.NewDB(&ingest.DBConfig{
		Host:     viper.GetString("seed.db.host"),
		Port:     viper.GetInt("seed.db.port"),
		User:     viper.GetString("seed.db.user"),
		Password: viper.GetString("seed.db.password"),
		DBName:   viper.GetString("seed.db.name"),
		SSLMode:  viper.GetString("seed.db.sslmode"),
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

	cameras := viper.GetInt("seed.cameras")
	perCamera := viper.GetInt("seed.readings")
	spacing := viper.GetDuration("seed.spacing")
	prefix := viper.GetString("seed.asset_prefix")

	ctx := context.Background()
	total := 0

	for i := 0; i < cameras; i++ {
		camera := generator.NewThermalCamera(prefix)
		if camera == nil {
			logger.Error("failed to generate fake camera")
			continue
		}
		gen := generator.NewThermalGenerator(camera)

		readings := make([]*ingest.ThermalReading, 0, perCamera)
		at := time.Now().Add(-time.Duration(perCamera) * spacing)
		for j := 0; j < perCamera; j++ {
			readings = append(readings, gen.GenerateReading(at))
			at = at.Add(spacing)
		}

		if err := store.AppendReadings(ctx, readings); err != nil {
			logger.Error("failed to insert readings", "asset", camera.AssetName, "error", err)
			return err
		}
		total += len(readings)
		logger.Info("seeded camera", "asset", camera.AssetName, "readings", len(readings))
	}

	logger.Info("seeding complete", "cameras", cameras, "readings", total)
	return nil
}
