// Package thermal defines the temperature-grid contract with the external
// thermal decoder and the statistics derived from a decoded grid.
package thermal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultDecodeTimeout bounds one decoder invocation per file.
const DefaultDecodeTimeout = 30 * time.Second

// Grid is a 2D matrix of temperature values in Celsius, row-major.
type Grid [][]float64

// Decoder extracts the temperature grid from a proprietary thermal image.
// A decode error means the file is not a valid thermal capture; the
// pipeline archives such files without uploading a row.
type Decoder interface {
	Decode(ctx context.Context, path string) (Grid, error)
}

// ExecDecoder invokes an external decoder command that emits the Celsius
// grid as JSON on stdout: {"celsius": [[...], ...]}.
type ExecDecoder struct {
	logger  *slog.Logger
	binary  string
	timeout time.Duration
}

// DecoderConfig holds the configuration for an ExecDecoder.
type DecoderConfig struct {
	Logger *slog.Logger
	// Binary is the decoder executable. Defaults to "thermal-decode".
	Binary string
	// Timeout bounds one invocation. Defaults to DefaultDecodeTimeout.
	Timeout time.Duration
}

// NewExecDecoder creates a decoder client.
func NewExecDecoder(cfg *DecoderConfig) (*ExecDecoder, error) {
	if cfg == nil {
		return nil, errors.New("decoder config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	d := &ExecDecoder{
		logger:  cfg.Logger,
		binary:  strings.TrimSpace(cfg.Binary),
		timeout: cfg.Timeout,
	}
	if d.binary == "" {
		d.binary = "thermal-decode"
	}
	if d.timeout <= 0 {
		d.timeout = DefaultDecodeTimeout
	}
	return d, nil
}

type decodeOutput struct {
	Celsius Grid `json:"celsius"`
}

// Decode runs the decoder against path and returns the parsed grid.
func (d *ExecDecoder) Decode(ctx context.Context, path string) (Grid, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("decode: empty path")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, "--format", "json", "--", path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out decodeOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("decode %s: unparsable output: %w", path, err)
	}

	if err := out.Celsius.validate(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out.Celsius, nil
}

// validate rejects empty or ragged grids before any statistics are derived.
func (g Grid) validate() error {
	if len(g) == 0 || len(g[0]) == 0 {
		return ErrEmptyGrid
	}
	width := len(g[0])
	for i, row := range g {
		if len(row) != width {
			return fmt.Errorf("ragged temperature grid at row %d", i)
		}
	}
	return nil
}
