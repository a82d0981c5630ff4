package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Stability gate defaults, matching the camera sync behavior: files older
// than a minute are assumed fully written and are never probed again.
const (
	DefaultRecentWindow     = 60 * time.Second
	DefaultStabilityPoll    = time.Second
	DefaultStabilityTimeout = 15 * time.Second
)

// ErrTreeUnstable is returned when files in the watched tree are still
// being written after the gate timeout. The run is skipped, not failed;
// the next trigger retries.
var ErrTreeUnstable = errors.New("watched tree has locked files")

// LockProbe reports whether the file at path is still being written.
type LockProbe func(path string) bool

// AppendProbe is the default lock probe: it attempts to open the file for
// exclusive append. A file the camera (or a copy operation) still holds
// open fails the probe.
func AppendProbe(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		return true
	}
	_ = f.Close()
	return false
}

// StabilityGate blocks a pipeline run until no recently-modified image
// file under the watched tree is locked, or the timeout elapses.
type StabilityGate struct {
	logger       *slog.Logger
	root         string
	archiveDir   string
	recentWindow time.Duration
	poll         time.Duration
	timeout      time.Duration
	probe        LockProbe
}

// GateConfig holds the configuration for a StabilityGate.
type GateConfig struct {
	Logger     *slog.Logger
	Root       string
	ArchiveDir string
	// RecentWindow bounds which files are probed: only files modified
	// within this window can be mid-copy. Defaults to 60s.
	RecentWindow time.Duration
	// Poll is the interval between probes while waiting. Defaults to 1s.
	Poll time.Duration
	// Timeout bounds the total wait. Defaults to 15s.
	Timeout time.Duration
	// Probe overrides the lock probe, for testing. Defaults to AppendProbe.
	Probe LockProbe
}

// NewStabilityGate creates a gate for the watched tree.
func NewStabilityGate(cfg *GateConfig) (*StabilityGate, error) {
	if cfg == nil {
		return nil, errors.New("gate config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Root == "" {
		return nil, errors.New("watch root cannot be empty")
	}

	g := &StabilityGate{
		logger:       cfg.Logger,
		root:         cfg.Root,
		archiveDir:   cfg.ArchiveDir,
		recentWindow: cfg.RecentWindow,
		poll:         cfg.Poll,
		timeout:      cfg.Timeout,
		probe:        cfg.Probe,
	}
	if g.recentWindow <= 0 {
		g.recentWindow = DefaultRecentWindow
	}
	if g.poll <= 0 {
		g.poll = DefaultStabilityPoll
	}
	if g.timeout <= 0 {
		g.timeout = DefaultStabilityTimeout
	}
	if g.probe == nil {
		g.probe = AppendProbe
	}
	return g, nil
}

// Wait blocks until the tree is stable or the timeout elapses. It returns
// ErrTreeUnstable (wrapped) if locked files remain, so the caller can skip
// the run and retry on the next trigger.
func (g *StabilityGate) Wait(ctx context.Context) error {
	deadline := time.Now().Add(g.timeout)

	for {
		locked, err := g.lockedFiles()
		if err != nil {
			return fmt.Errorf("stability check failed: %w", err)
		}
		if len(locked) == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d file(s) still locked after %s",
				ErrTreeUnstable, len(locked), g.timeout)
		}

		names := make([]string, 0, 3)
		for i, p := range locked {
			if i == 3 {
				break
			}
			names = append(names, filepath.Base(p))
		}
		g.logger.Info("waiting for locked files", "files", names)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.poll):
		}
	}
}

// lockedFiles probes every recently-modified image file under the tree.
// Older files are assumed stable and skipped, so a large archive of old
// snapshots does not get re-probed on every trigger.
func (g *StabilityGate) lockedFiles() ([]string, error) {
	files, err := ListImageFiles(g.root, g.archiveDir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-g.recentWindow)
	var locked []string
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			// File disappeared mid-scan; nothing to wait for.
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if g.probe(path) {
			locked = append(locked, path)
		}
	}
	return locked, nil
}
