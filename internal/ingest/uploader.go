package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"procodus.dev/thermal-ingest/internal/exif"
	"procodus.dev/thermal-ingest/pkg/metrics"
)

// DefaultChunkSize bounds one store transaction and the memory held by
// in-flight rows.
const DefaultChunkSize = 50

// Announcer is notified after every confirmed chunk write. Announcements
// are best-effort: failures are logged by the implementation and never
// affect the write-then-archive contract.
type Announcer interface {
	Announce(ctx context.Context, readings []*ThermalReading)
}

// Uploader builds rows for the to-process list in fixed-size chunks,
// appends each chunk to the store as one bulk write, and archives a
// chunk's source files only after the write is confirmed. A failed chunk
// leaves its files in place for the next run; retry is safe because
// duplicate detection is signature-based and re-derivable.
type Uploader struct {
	logger    *slog.Logger
	store     Store
	archiver  *Archiver
	builder   *RowBuilder
	announcer Announcer
	chunkSize int
	metrics   *metrics.IngestMetrics
}

// UploaderConfig holds the collaborators of an Uploader.
type UploaderConfig struct {
	Logger    *slog.Logger
	Store     Store
	Archiver  *Archiver
	Builder   *RowBuilder
	Announcer Announcer
	ChunkSize int
	Metrics   *metrics.IngestMetrics
}

// NewUploader creates an Uploader.
func NewUploader(cfg *UploaderConfig) (*Uploader, error) {
	if cfg == nil {
		return nil, errors.New("uploader config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Archiver == nil {
		return nil, errors.New("archiver cannot be nil")
	}
	if cfg.Builder == nil {
		return nil, errors.New("builder cannot be nil")
	}

	u := &Uploader{
		logger:    cfg.Logger,
		store:     cfg.Store,
		archiver:  cfg.Archiver,
		builder:   cfg.Builder,
		announcer: cfg.Announcer,
		chunkSize: cfg.ChunkSize,
		metrics:   cfg.Metrics,
	}
	if u.chunkSize <= 0 {
		u.chunkSize = DefaultChunkSize
	}
	return u, nil
}

// Upload processes the ordered to-process list chunk by chunk and returns
// counts of uploaded rows, discarded files, and failed chunks.
func (u *Uploader) Upload(ctx context.Context, files []string, meta map[string]exif.Metadata) (uploaded, discarded, failedChunks int) {
	for start := 0; start < len(files); start += u.chunkSize {
		end := min(start+u.chunkSize, len(files))
		chunk := files[start:end]

		rows := make([]*ThermalReading, 0, len(chunk))
		sources := make([]string, 0, len(chunk))

		for _, path := range chunk {
			reading, err := u.builder.Build(ctx, path, meta[path])
			if err != nil {
				// Discard: archive without upload, keep the run going.
				u.logger.Warn("discarding file",
					"file", filepath.Base(path),
					"reason", err,
				)
				if _, archErr := u.archiver.Move(path); archErr != nil {
					u.logger.Error("failed to archive discarded file",
						"file", filepath.Base(path), "error", archErr)
				}
				discarded++
				if u.metrics != nil {
					u.metrics.FilesTotal.WithLabelValues(metrics.FileStatusDiscarded).Inc()
				}
				continue
			}
			rows = append(rows, reading)
			sources = append(sources, path)
		}

		if len(rows) == 0 {
			continue
		}

		if err := u.store.AppendReadings(ctx, rows); err != nil {
			// The chunk's files stay in place, unduplicated in the store;
			// the next trigger re-derives the same rows and retries.
			u.logger.Error("chunk upload failed, leaving files for retry",
				"files", len(sources),
				"error", err,
			)
			failedChunks++
			if u.metrics != nil {
				u.metrics.ChunksTotal.WithLabelValues(metrics.StatusError).Inc()
			}
			continue
		}

		if u.metrics != nil {
			u.metrics.ChunksTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		}

		// Write confirmed; only now do the source files leave the tree.
		for _, path := range sources {
			if _, err := u.archiver.Move(path); err != nil {
				u.logger.Error("failed to archive uploaded file",
					"file", filepath.Base(path), "error", err)
			}
		}
		uploaded += len(rows)
		if u.metrics != nil {
			u.metrics.FilesTotal.WithLabelValues(metrics.FileStatusUploaded).Add(float64(len(rows)))
		}

		if u.announcer != nil {
			u.announcer.Announce(ctx, rows)
		}
	}

	return uploaded, discarded, failedChunks
}
