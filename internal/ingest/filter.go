package ingest

import (
	"errors"
	"log/slog"
	"path/filepath"

	"procodus.dev/thermal-ingest/internal/exif"
	"procodus.dev/thermal-ingest/pkg/metrics"
)

// DuplicateFilter partitions the files of one run into duplicates (archived
// immediately, never uploaded) and files to process. Candidates whose
// signature cannot be derived (missing asset tag or unparsable timestamp)
// are always routed to processing; the row builder decides their fate.
type DuplicateFilter struct {
	logger   *slog.Logger
	archiver *Archiver
	metrics  *metrics.IngestMetrics
}

// NewDuplicateFilter creates a filter that archives detected duplicates
// through archiver.
func NewDuplicateFilter(archiver *Archiver, logger *slog.Logger, m *metrics.IngestMetrics) (*DuplicateFilter, error) {
	if archiver == nil {
		return nil, errors.New("archiver cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &DuplicateFilter{logger: logger, archiver: archiver, metrics: m}, nil
}

// Partition classifies every file against the working signature set,
// growing the set as candidates are accepted so that copies later in the
// same listing ("FLIR0030 (1).jpg") are caught without a store round-trip.
// It returns the ordered list of files to process and the number of
// duplicates archived.
func (f *DuplicateFilter) Partition(files []string, meta map[string]exif.Metadata, seen SignatureSet) ([]string, int) {
	toProcess := make([]string, 0, len(files))
	duplicates := 0

	for _, path := range files {
		m := meta[path]

		asset := NormalizeAsset(m.Description)
		capturedAt, tsErr := ParseCaptureTime(m.DateTimeOriginal)
		known := asset != "" && tsErr == nil

		if known {
			sig := NewSignature(asset, capturedAt, m.SerialNumber())
			if seen.Contains(sig) {
				f.logger.Info("duplicate capture, archiving",
					"file", filepath.Base(path),
					"asset", sig.Asset,
					"captured_at", sig.Timestamp,
				)
				if _, err := f.archiver.Move(path); err != nil {
					f.logger.Error("failed to archive duplicate", "file", filepath.Base(path), "error", err)
				}
				duplicates++
				if f.metrics != nil {
					f.metrics.FilesTotal.WithLabelValues(metrics.FileStatusDuplicate).Inc()
				}
				continue
			}
			// Accepted: claim the signature now so same-batch copies are
			// rejected even before the store sees the row.
			seen.Add(sig)
		}

		toProcess = append(toProcess, path)
	}

	return toProcess, duplicates
}
