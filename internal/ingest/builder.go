package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"procodus.dev/thermal-ingest/internal/exif"
	"procodus.dev/thermal-ingest/internal/thermal"
	"procodus.dev/thermal-ingest/internal/visual"
	"procodus.dev/thermal-ingest/internal/weather"
	"procodus.dev/thermal-ingest/pkg/metrics"
)

// Build failure reasons. A build failure discards the file (archived
// without upload); it never fails the run.
var (
	// ErrNoAsset means the camera note normalized to an empty asset tag.
	ErrNoAsset = errors.New("no asset tag")
	// ErrBadTimestamp means the capture timestamp could not be parsed.
	ErrBadTimestamp = errors.New("bad capture timestamp")
)

// RowBuilder combines one file's decoded temperature grid with its
// metadata into a persistable ThermalReading.
type RowBuilder struct {
	logger   *slog.Logger
	decoder  thermal.Decoder
	renderer visual.Renderer
	weather  weather.Provider
	metrics  *metrics.IngestMetrics
}

// BuilderConfig holds the collaborators of a RowBuilder. Weather is
// optional; when nil, rows carry no ambient temperature.
type BuilderConfig struct {
	Logger   *slog.Logger
	Decoder  thermal.Decoder
	Renderer visual.Renderer
	Weather  weather.Provider
	Metrics  *metrics.IngestMetrics
}

// NewRowBuilder creates a RowBuilder.
func NewRowBuilder(cfg *BuilderConfig) (*RowBuilder, error) {
	if cfg == nil {
		return nil, errors.New("builder config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Decoder == nil {
		return nil, errors.New("decoder cannot be nil")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}

	return &RowBuilder{
		logger:   cfg.Logger,
		decoder:  cfg.Decoder,
		renderer: cfg.Renderer,
		weather:  cfg.Weather,
		metrics:  cfg.Metrics,
	}, nil
}

// Build constructs the reading for one source file. The stored timestamp
// is the literal parsed wall-clock value; no timezone conversion is
// applied because the store column is naive.
func (b *RowBuilder) Build(ctx context.Context, path string, meta exif.Metadata) (*ThermalReading, error) {
	asset := NormalizeAsset(meta.Description)
	if asset == "" {
		return nil, ErrNoAsset
	}

	capturedAt, err := ParseCaptureTime(meta.DateTimeOriginal)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimestamp, meta.DateTimeOriginal)
	}

	grid, err := b.decoder.Decode(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	stats, err := grid.Stats()
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}

	encoded, err := b.renderer.Render(grid)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	reading := &ThermalReading{
		Timestamp:    capturedAt,
		Filename:     filepath.Base(path),
		AssetName:    asset,
		CameraSerial: meta.SerialNumber(),
		MaxTempC:     stats.Max,
		MinTempC:     stats.Min,
		AvgTempC:     stats.Avg,
		CenterTempC:  stats.Center,
		DeltaTempC:   stats.Delta,
		Emissivity:   meta.EmissivityOrDefault(),
		Distance:     thermal.Round1(meta.DistanceOrDefault()),
		ImageBase64:  encoded,
	}

	reading.WeatherTemp = b.lookupWeather(ctx, capturedAt)

	return reading, nil
}

// lookupWeather attempts the ambient-temperature sample for the capture
// hour. Any failure yields nil, not an error: weather is best-effort.
func (b *RowBuilder) lookupWeather(ctx context.Context, capturedAt time.Time) *float64 {
	if b.weather == nil {
		return nil
	}

	temp, err := b.weather.TemperatureAt(ctx, capturedAt)
	if err != nil {
		b.logger.Warn("weather lookup failed", "error", err)
		if b.metrics != nil {
			b.metrics.WeatherLookupsTotal.WithLabelValues(metrics.StatusError).Inc()
		}
		return nil
	}

	if b.metrics != nil {
		b.metrics.WeatherLookupsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	}
	return &temp
}
