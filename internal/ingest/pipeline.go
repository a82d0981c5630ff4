package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"procodus.dev/thermal-ingest/internal/exif"
	"procodus.dev/thermal-ingest/pkg/metrics"
)

// MetadataScanner is the pipeline's view of the metadata extractor.
type MetadataScanner interface {
	Scan(ctx context.Context, root, excludeDir string) (map[string]exif.Metadata, error)
}

// RunStats summarizes one pipeline pass.
type RunStats struct {
	Scanned      int
	Duplicates   int
	Uploaded     int
	Discarded    int
	FailedChunks int
}

// Pipeline drives one full pass: metadata scan, signature seeding,
// duplicate filtering, row building, chunked upload, archiving. Passes
// are strictly sequential; the trigger loop never overlaps two runs.
type Pipeline struct {
	logger     *slog.Logger
	scanner    MetadataScanner
	store      Store
	filter     *DuplicateFilter
	uploader   *Uploader
	watchRoot  string
	archiveDir string
	metrics    *metrics.IngestMetrics
}

// PipelineConfig holds the collaborators of a Pipeline.
type PipelineConfig struct {
	Logger     *slog.Logger
	Scanner    MetadataScanner
	Store      Store
	Filter     *DuplicateFilter
	Uploader   *Uploader
	WatchRoot  string
	ArchiveDir string
	Metrics    *metrics.IngestMetrics
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Scanner == nil {
		return nil, errors.New("scanner cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Filter == nil {
		return nil, errors.New("filter cannot be nil")
	}
	if cfg.Uploader == nil {
		return nil, errors.New("uploader cannot be nil")
	}
	if cfg.WatchRoot == "" {
		return nil, errors.New("watch root cannot be empty")
	}
	if cfg.ArchiveDir == "" {
		return nil, errors.New("archive dir cannot be empty")
	}

	return &Pipeline{
		logger:     cfg.Logger,
		scanner:    cfg.Scanner,
		store:      cfg.Store,
		filter:     cfg.Filter,
		uploader:   cfg.Uploader,
		watchRoot:  cfg.WatchRoot,
		archiveDir: cfg.ArchiveDir,
		metrics:    cfg.Metrics,
	}, nil
}

// Run executes one pass. An error aborts the run with the tree untouched
// (metadata or store query failure); per-file and per-chunk failures are
// absorbed into the returned stats instead.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	started := time.Now()
	p.logger.Info("starting pipeline run")

	meta, err := p.scanner.Scan(ctx, p.watchRoot, p.archiveDir)
	if err != nil {
		return RunStats{}, fmt.Errorf("metadata scan failed: %w", err)
	}
	if len(meta) == 0 {
		p.logger.Info("no readable images found")
		return RunStats{}, nil
	}

	earliest, ok := earliestCapture(meta)
	if !ok {
		p.logger.Info("no parsable capture timestamps in scan")
		return RunStats{}, nil
	}

	// Seed the working set from the start of the earliest capture day;
	// everything older cannot collide with this batch.
	since := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, earliest.Location())
	seen, err := p.store.ExistingSignatures(ctx, since)
	if err != nil {
		// Without the store's view duplicates cannot be ruled out; skip
		// the run entirely and retry on the next trigger.
		return RunStats{}, fmt.Errorf("signature query failed: %w", err)
	}

	files, err := ListImageFiles(p.watchRoot, p.archiveDir)
	if err != nil {
		return RunStats{}, fmt.Errorf("file scan failed: %w", err)
	}

	stats := RunStats{Scanned: len(files)}

	toProcess, duplicates := p.filter.Partition(files, meta, seen)
	stats.Duplicates = duplicates

	if len(toProcess) == 0 {
		p.logger.Info("no new data to upload", "duplicates", duplicates)
		return stats, nil
	}

	p.logger.Info("processing new images", "count", len(toProcess))
	stats.Uploaded, stats.Discarded, stats.FailedChunks = p.uploader.Upload(ctx, toProcess, meta)

	if p.metrics != nil {
		p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	}

	p.logger.Info("pipeline run complete",
		"scanned", stats.Scanned,
		"duplicates", stats.Duplicates,
		"uploaded", stats.Uploaded,
		"discarded", stats.Discarded,
		"failed_chunks", stats.FailedChunks,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return stats, nil
}

// earliestCapture returns the earliest parsable capture time in the scan.
func earliestCapture(meta map[string]exif.Metadata) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, m := range meta {
		t, err := ParseCaptureTime(m.DateTimeOriginal)
		if err != nil {
			continue
		}
		if !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	return earliest, found
}
