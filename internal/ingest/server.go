package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gorm.io/gorm"

	"procodus.dev/thermal-ingest/internal/exif"
	"procodus.dev/thermal-ingest/internal/thermal"
	"procodus.dev/thermal-ingest/internal/visual"
	"procodus.dev/thermal-ingest/internal/weather"
	"procodus.dev/thermal-ingest/pkg/metrics"
	"procodus.dev/thermal-ingest/pkg/mq"
)

// DefaultPollInterval is the fallback trigger cadence: even with no file
// events, a pass is scheduled this often.
const DefaultPollInterval = 1 * time.Second

// DefaultDebounce is how long the server waits after a trigger before
// starting a pass, so a burst of arriving files collapses into one run.
const DefaultDebounce = 1 * time.Second

// Server wires the full ingestion service: watched folder, stability
// gate, pipeline, store, and optional metrics and queue surfaces.
type Server struct {
	logger    *slog.Logger
	config    *ServerConfig
	db        *gorm.DB
	watcher   *Watcher
	publisher *ReadingPublisher
	metricsrv *http.Server
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Watched folder configuration
	WatchRoot  string
	ArchiveDir string // defaults to <WatchRoot>/archive
	ChunkSize  int

	// External tool configuration
	ExiftoolPath string
	DecoderPath  string

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// Weather configuration
	WeatherEnabled bool
	Latitude       float64
	Longitude      float64

	// RabbitMQ configuration; announcements are disabled when URL is empty
	RabbitMQURL string
	QueueName   string

	// Metrics endpoint port; disabled when zero
	MetricsPort int

	// Trigger timing
	PollInterval     time.Duration
	Debounce         time.Duration
	StabilityTimeout time.Duration

	// Once runs a single gated pass and exits instead of watching.
	Once bool

	// ManualTrigger, when non-nil, fires a pass per line read (typically
	// os.Stdin on an attached console).
	ManualTrigger io.Reader
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.WatchRoot == "" {
		return nil, errors.New("watch root cannot be empty")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	if cfg.RabbitMQURL != "" && cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty when rabbitmq URL is set")
	}

	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(cfg.WatchRoot, "archive")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the ingestion service and blocks until shutdown. Per-run
// failures are absorbed: a failed or skipped pass is logged and counted,
// and the service waits for the next trigger.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingestion server", "watch_root", s.config.WatchRoot)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if info, err := os.Stat(s.config.WatchRoot); err != nil {
		return fmt.Errorf("watch root unavailable: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("watch root is not a directory: %s", s.config.WatchRoot)
	}

	extractor, err := exif.New(&exif.Config{
		Logger: s.logger,
		Binary: s.config.ExiftoolPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metadata extractor: %w", err)
	}
	if err := extractor.Available(); err != nil {
		return fmt.Errorf("metadata extractor unavailable: %w", err)
	}

	archiver, err := NewArchiver(s.config.ArchiveDir, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}

	// Initialize database
	db, err := NewDB(&DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db
	s.logger.Info("database initialized successfully")

	store, err := NewGormStore(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	ingestMetrics := metrics.NewIngestMetrics("thermal_ingest")
	if s.config.MetricsPort > 0 {
		s.startMetricsServer(cancel)
	}

	var announcer Announcer
	if s.config.RabbitMQURL != "" {
		client := mq.New(s.config.QueueName, s.config.RabbitMQURL, s.logger)
		client.SetMetrics(metrics.NewMQMetrics("thermal_ingest"))
		publisher, err := NewReadingPublisher(client, s.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize publisher: %w", err)
		}
		s.publisher = publisher
		announcer = publisher
	}

	var provider weather.Provider
	if s.config.WeatherEnabled {
		provider, err = weather.NewOpenMeteo(&weather.Config{
			Logger:    s.logger,
			Latitude:  s.config.Latitude,
			Longitude: s.config.Longitude,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize weather provider: %w", err)
		}
	}

	decoder, err := thermal.NewExecDecoder(&thermal.DecoderConfig{
		Logger: s.logger,
		Binary: s.config.DecoderPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize thermal decoder: %w", err)
	}

	builder, err := NewRowBuilder(&BuilderConfig{
		Logger:   s.logger,
		Decoder:  decoder,
		Renderer: visual.NewHeatmapRenderer(0),
		Weather:  provider,
		Metrics:  ingestMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize row builder: %w", err)
	}

	filter, err := NewDuplicateFilter(archiver, s.logger, ingestMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize duplicate filter: %w", err)
	}

	uploader, err := NewUploader(&UploaderConfig{
		Logger:    s.logger,
		Store:     store,
		Archiver:  archiver,
		Builder:   builder,
		Announcer: announcer,
		ChunkSize: s.config.ChunkSize,
		Metrics:   ingestMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize uploader: %w", err)
	}

	pipeline, err := NewPipeline(&PipelineConfig{
		Logger:     s.logger,
		Scanner:    extractor,
		Store:      store,
		Filter:     filter,
		Uploader:   uploader,
		WatchRoot:  s.config.WatchRoot,
		ArchiveDir: s.config.ArchiveDir,
		Metrics:    ingestMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	gate, err := NewStabilityGate(&GateConfig{
		Logger:     s.logger,
		Root:       s.config.WatchRoot,
		ArchiveDir: s.config.ArchiveDir,
		Timeout:    s.config.StabilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize stability gate: %w", err)
	}

	// Pick up anything already waiting in the tree before the first trigger.
	s.runPass(ctx, gate, pipeline, ingestMetrics)

	if s.config.Once {
		s.logger.Info("single pass complete")
		return s.Shutdown()
	}

	trigger := NewTrigger()

	watcher, err := NewWatcher(s.config.WatchRoot, s.config.ArchiveDir, trigger, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize file watcher: %w", err)
	}
	s.watcher = watcher

	if s.config.ManualTrigger != nil {
		go WatchConsole(s.config.ManualTrigger, trigger, s.logger)
	}

	poll := time.NewTicker(s.config.PollInterval)
	defer poll.Stop()

	s.logger.Info("ingestion server started successfully")

	for {
		select {
		case sig := <-sigChan:
			s.logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
			return s.Shutdown()

		case <-ctx.Done():
			s.logger.Info("context canceled")
			return s.Shutdown()

		case <-poll.C:
			trigger.Fire()

		case <-trigger:
			// Let the burst settle before scanning; anything that fires
			// during the wait is covered by this pass.
			select {
			case <-time.After(s.config.Debounce):
			case <-ctx.Done():
				return s.Shutdown()
			}
			trigger.Drain()

			s.runPass(ctx, gate, pipeline, ingestMetrics)
		}
	}
}

// runPass executes one gated pipeline pass. Failures never propagate:
// the files stay in the tree and the next trigger retries.
func (s *Server) runPass(ctx context.Context, gate *StabilityGate, pipeline *Pipeline, m *metrics.IngestMetrics) {
	if err := gate.Wait(ctx); err != nil {
		s.logger.Warn("skipping pass, tree not stable", "error", err)
		m.RunsTotal.WithLabelValues(metrics.RunSkippedUnstable).Inc()
		return
	}

	if _, err := pipeline.Run(ctx); err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		m.RunsTotal.WithLabelValues(metrics.RunFailed).Inc()
		return
	}

	m.RunsTotal.WithLabelValues(metrics.RunCompleted).Inc()
}

// startMetricsServer exposes the Prometheus registry over HTTP. A serve
// error cancels the run context.
func (s *Server) startMetricsServer(cancel context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	s.metricsrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("starting metrics server", "address", s.metricsrv.Addr)
	go func() {
		if err := s.metricsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
			cancel()
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down ingestion server")

	var shutdownErr error

	if s.watcher != nil {
		s.logger.Info("stopping file watcher")
		if err := s.watcher.Close(); err != nil {
			s.logger.Error("failed to stop file watcher", "error", err)
			shutdownErr = fmt.Errorf("watcher shutdown error: %w", err)
		}
	}

	if s.metricsrv != nil {
		s.logger.Info("stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to stop metrics server", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; metrics shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("metrics shutdown error: %w", err)
			}
		}
		cancel()
	}

	if s.publisher != nil {
		s.logger.Info("stopping publisher")
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("failed to stop publisher", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; publisher shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("publisher shutdown error: %w", err)
			}
		}
	}

	if s.db != nil {
		s.logger.Info("closing database connection")
		if err := CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("ingestion server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("ingestion server shutdown completed successfully")
	return nil
}
