// Package exif adapts the external exiftool metadata extractor. One
// recursive invocation covers the whole watched tree, so process-spawn
// overhead stays bounded regardless of how many snapshots arrived.
package exif

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds one extractor invocation over the whole tree.
const DefaultTimeout = 15 * time.Second

// Defaults substituted for missing numeric capture parameters. Kept here,
// next to the accessors, so every defaulting rule is enumerable in one place.
const (
	DefaultEmissivity = 0.95
	DefaultDistance   = 1.0
)

// FlexInt decodes a JSON value that may arrive as a number, a numeric
// string, or null. exiftool is not consistent about serial number types
// across camera firmwares; anything unparsable collapses to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(int(n))
		return nil
	}
	*f = 0
	return nil
}

// Metadata is the per-file record the extractor produces. Absent fields
// keep their zero value; the accessor methods apply the documented defaults.
type Metadata struct {
	SourceFile       string   `json:"SourceFile"`
	DateTimeOriginal string   `json:"DateTimeOriginal"`
	Description      string   `json:"ImageDescription"`
	CameraSerial     FlexInt  `json:"CameraSerialNumber"`
	Emissivity       *float64 `json:"Emissivity"`
	ObjectDistance   *float64 `json:"ObjectDistance"`
}

// SerialNumber returns the camera serial, defaulting to 0 when absent.
func (m Metadata) SerialNumber() int {
	return int(m.CameraSerial)
}

// EmissivityOrDefault returns the capture emissivity, defaulting to 0.95.
func (m Metadata) EmissivityOrDefault() float64 {
	if m.Emissivity == nil {
		return DefaultEmissivity
	}
	return *m.Emissivity
}

// DistanceOrDefault returns the object distance in meters, defaulting to 1.0.
func (m Metadata) DistanceOrDefault() float64 {
	if m.ObjectDistance == nil {
		return DefaultDistance
	}
	return *m.ObjectDistance
}

// Extractor invokes exiftool over a directory tree and normalizes its
// JSON output into a lookup by absolute file path.
type Extractor struct {
	logger  *slog.Logger
	binary  string
	timeout time.Duration
}

// Config holds the configuration for an Extractor.
type Config struct {
	Logger *slog.Logger
	// Binary is the exiftool executable path. Defaults to "exiftool".
	Binary string
	// Timeout bounds one invocation. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// New creates an Extractor.
func New(cfg *Config) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.New("extractor config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	e := &Extractor{
		logger:  cfg.Logger,
		binary:  strings.TrimSpace(cfg.Binary),
		timeout: cfg.Timeout,
	}
	if e.binary == "" {
		e.binary = "exiftool"
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e, nil
}

// Available verifies the extractor executable can be found. A missing
// extractor is a fatal startup condition.
func (e *Extractor) Available() error {
	if _, err := exec.LookPath(e.binary); err == nil {
		return nil
	}
	if _, err := os.Stat(e.binary); err != nil {
		return errors.New("exiftool not found at " + e.binary)
	}
	return nil
}

// Scan runs the extractor recursively over root and returns metadata for
// every image file found, keyed by absolute path and excluding anything
// under excludeDir. Timeouts, invocation errors, and unparsable output all
// yield an empty result: the caller treats that as "no work found" for the
// run, never as a fatal error.
func (e *Extractor) Scan(ctx context.Context, root, excludeDir string) (map[string]Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary,
		"-j", "-n", "-r",
		"-DateTimeOriginal",
		"-CameraSerialNumber",
		"-ImageDescription",
		"-Emissivity",
		"-ObjectDistance",
		"-ext", "jpg",
		root,
	)
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// exiftool exits non-zero when some files in the tree are unreadable
	// but still emits records for the rest, so the exit status alone is
	// not a failure: only an empty payload is.
	runErr := cmd.Run()
	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		if runErr != nil {
			e.logger.Error("metadata scan failed",
				"error", runErr,
				"stderr", strings.TrimSpace(stderr.String()),
			)
		}
		return map[string]Metadata{}, nil
	}

	var records []Metadata
	if err := json.Unmarshal(out, &records); err != nil {
		e.logger.Error("metadata output unparsable", "error", err)
		return map[string]Metadata{}, nil
	}

	excludeAbs, err := filepath.Abs(excludeDir)
	if err != nil {
		excludeAbs = excludeDir
	}

	byPath := make(map[string]Metadata, len(records))
	for _, rec := range records {
		if rec.SourceFile == "" {
			continue
		}
		abs, err := filepath.Abs(rec.SourceFile)
		if err != nil {
			continue
		}
		if excludeAbs != "" && strings.HasPrefix(abs, excludeAbs+string(filepath.Separator)) {
			continue
		}
		byPath[abs] = rec
	}

	e.logger.Debug("metadata scan complete", "files", len(byPath))
	return byPath, nil
}
