package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingestion service",
	Long: `Run the ingestion service that:
- Watches a folder tree for thermal camera images
- Extracts metadata and decodes temperature grids
- Deduplicates by asset name, capture time, and camera serial
- Uploads readings to PostgreSQL in transactional chunks
- Archives files after their chunk write is confirmed`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Ingest-specific flags
	ingestCmd.Flags().String("watch-root", "", "folder tree to watch for images")
	ingestCmd.Flags().String("archive-dir", "", "archive folder (default is <watch-root>/archive)")
	ingestCmd.Flags().Int("chunk-size", ingest.DefaultChunkSize, "rows per store transaction")
	ingestCmd.Flags().String("exiftool-path", "exiftool", "exiftool executable path")
	ingestCmd.Flags().String("decoder-path", "thermal-decode", "thermal decoder executable path")
	ingestCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	ingestCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	ingestCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	ingestCmd.Flags().String("db-password", "", "PostgreSQL password")
	ingestCmd.Flags().String("db-name", "thermal", "PostgreSQL database name")
	ingestCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	ingestCmd.Flags().Bool("weather-enabled", true, "annotate readings with ambient temperature")
	ingestCmd.Flags().Float64("latitude", 31.2001, "site latitude for weather lookups")
	ingestCmd.Flags().Float64("longitude", 29.9187, "site longitude for weather lookups")
	ingestCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL for reading announcements (disabled when empty)")
	ingestCmd.Flags().String("queue-name", "thermal-readings", "RabbitMQ queue name for reading announcements")
	ingestCmd.Flags().Int("metrics-port", 0, "Prometheus metrics port (disabled when zero)")
	ingestCmd.Flags().Duration("poll-interval", ingest.DefaultPollInterval, "fallback trigger interval")
	ingestCmd.Flags().Duration("debounce", ingest.DefaultDebounce, "settle time after a trigger before a pass")
	ingestCmd.Flags().Duration("stability-timeout", ingest.DefaultStabilityTimeout, "maximum wait for in-flight file copies")
	ingestCmd.Flags().Bool("once", false, "run a single pass and exit")

	// Bind flags to viper
	_ = viper.BindPFlag("ingest.watch_root", ingestCmd.Flags().Lookup("watch-root"))
	_ = viper.BindPFlag("ingest.archive_dir", ingestCmd.Flags().Lookup("archive-dir"))
	_ = viper.BindPFlag("ingest.chunk_size", ingestCmd.Flags().Lookup("chunk-size"))
	_ = viper.BindPFlag("ingest.exiftool_path", ingestCmd.Flags().Lookup("exiftool-path"))
	_ = viper.BindPFlag("ingest.decoder_path", ingestCmd.Flags().Lookup("decoder-path"))
	_ = viper.BindPFlag("ingest.db.host", ingestCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("ingest.db.port", ingestCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("ingest.db.user", ingestCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("ingest.db.password", ingestCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("ingest.db.name", ingestCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("ingest.db.sslmode", ingestCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("ingest.weather.enabled", ingestCmd.Flags().Lookup("weather-enabled"))
	_ = viper.BindPFlag("ingest.weather.latitude", ingestCmd.Flags().Lookup("latitude"))
	_ = viper.BindPFlag("ingest.weather.longitude", ingestCmd.Flags().Lookup("longitude"))
	_ = viper.BindPFlag("ingest.rabbitmq.url", ingestCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("ingest.rabbitmq.queue_name", ingestCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("ingest.metrics.port", ingestCmd.Flags().Lookup("metrics-port"))
	_ = viper.BindPFlag("ingest.poll_interval", ingestCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("ingest.debounce", ingestCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("ingest.stability_timeout", ingestCmd.Flags().Lookup("stability-timeout"))
	_ = viper.BindPFlag("ingest.once", ingestCmd.Flags().Lookup("once"))
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting ingestion service")

	// Create server configuration from viper
	config := &ingest.ServerConfig{
		Logger:           logger,
		WatchRoot:        viper.GetString("ingest.watch_root"),
		ArchiveDir:       viper.GetString("ingest.archive_dir"),
		ChunkSize:        viper.GetInt("ingest.chunk_size"),
		ExiftoolPath:     viper.GetString("ingest.exiftool_path"),
		DecoderPath:      viper.GetString("ingest.decoder_path"),
		DBHost:           viper.GetString("ingest.db.host"),
		DBPort:           viper.GetInt("ingest.db.port"),
		DBUser:           viper.GetString("ingest.db.user"),
		DBPassword:       viper.GetString("ingest.db.password"),
		DBName:           viper.GetString("ingest.db.name"),
		DBSSLMode:        viper.GetString("ingest.db.sslmode"),
		WeatherEnabled:   viper.GetBool("ingest.weather.enabled"),
		Latitude:         viper.GetFloat64("ingest.weather.latitude"),
		Longitude:        viper.GetFloat64("ingest.weather.longitude"),
		RabbitMQURL:      viper.GetString("ingest.rabbitmq.url"),
		QueueName:        viper.GetString("ingest.rabbitmq.queue_name"),
		MetricsPort:      viper.GetInt("ingest.metrics.port"),
		PollInterval:     viper.GetDuration("ingest.poll_interval"),
		Debounce:         viper.GetDuration("ingest.debounce"),
		StabilityTimeout: viper.GetDuration("ingest.stability_timeout"),
		Once:             viper.GetBool("ingest.once"),
		ManualTrigger:    os.Stdin,
	}

	// Create and run server
	server, err := ingest.NewServer(config)
	if err != nil {
		logger.Error("failed to create ingestion server", "error", err)
		return err
	}

	logger.Info("ingestion server configuration",
		"watch_root", config.WatchRoot,
		"archive_dir", config.ArchiveDir,
		"chunk_size", config.ChunkSize,
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"weather_enabled", config.WeatherEnabled,
		"rabbitmq_url", config.RabbitMQURL,
		"metrics_port", config.MetricsPort,
		"once", config.Once,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("ingestion server error", "error", err)
		return err
	}

	logger.Info("ingestion server stopped")
	return nil
}
