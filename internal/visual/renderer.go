// Package visual renders a decoded temperature grid into the encoded
// visual representation stored alongside each reading. The output format
// is a data URI carrying a JPEG heatmap, opaque to the rest of the pipeline.
package visual

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"procodus.dev/thermal-ingest/internal/thermal"
)

// Renderer produces the stored visual representation of a grid.
type Renderer interface {
	Render(grid thermal.Grid) (string, error)
}

// HeatmapRenderer maps grid values through the inferno colormap, one pixel
// per cell, and encodes the result as a base64 JPEG data URI.
type HeatmapRenderer struct {
	quality int
}

// NewHeatmapRenderer creates a renderer with the given JPEG quality
// (1-100); zero selects the default of 90.
func NewHeatmapRenderer(quality int) *HeatmapRenderer {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &HeatmapRenderer{quality: quality}
}

// Render implements Renderer.
func (r *HeatmapRenderer) Render(grid thermal.Grid) (string, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return "", errors.New("render: empty temperature grid")
	}

	h := len(grid)
	w := len(grid[0])

	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, row := range grid {
		if len(row) != w {
			return "", errors.New("render: ragged temperature grid")
		}
		for _, v := range row {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}

	span := maxV - minV
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y, row := range grid {
		for x, v := range row {
			t := 0.0
			if span > 0 {
				t = (v - minV) / span
			}
			img.SetRGBA(x, y, inferno(t))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return "", fmt.Errorf("render: jpeg encode failed: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// infernoAnchors are evenly spaced samples of matplotlib's inferno
// colormap; intermediate values are linearly interpolated.
var infernoAnchors = [][3]float64{
	{0, 0, 4},
	{22, 11, 57},
	{66, 10, 104},
	{106, 23, 110},
	{147, 38, 103},
	{188, 55, 84},
	{221, 81, 58},
	{243, 118, 27},
	{252, 165, 10},
	{246, 215, 70},
	{252, 255, 164},
}

// inferno maps a normalized value in [0,1] to an RGBA color.
func inferno(t float64) color.RGBA {
	if t <= 0 {
		a := infernoAnchors[0]
		return color.RGBA{uint8(a[0]), uint8(a[1]), uint8(a[2]), 255}
	}
	if t >= 1 {
		a := infernoAnchors[len(infernoAnchors)-1]
		return color.RGBA{uint8(a[0]), uint8(a[1]), uint8(a[2]), 255}
	}

	pos := t * float64(len(infernoAnchors)-1)
	idx := int(pos)
	frac := pos - float64(idx)

	lo := infernoAnchors[idx]
	hi := infernoAnchors[idx+1]
	return color.RGBA{
		R: uint8(lo[0] + (hi[0]-lo[0])*frac),
		G: uint8(lo[1] + (hi[1]-lo[1])*frac),
		B: uint8(lo[2] + (hi[2]-lo[2])*frac),
		A: 255,
	}
}
