package thermal

import (
	"errors"
	"math"
)

// Stats are the scalar statistics derived from one decoded grid. All
// values are rounded to one decimal, matching the store's precision.
type Stats struct {
	Max    float64
	Min    float64
	Avg    float64
	Center float64
	Delta  float64
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Stats computes the per-capture statistics: max, min, mean, delta
// (max-min), and the center temperature as the mean of the 3x3
// neighborhood around the grid midpoint, clamped at the edges.
func (g Grid) Stats() (Stats, error) {
	if err := g.validate(); err != nil {
		return Stats{}, err
	}

	maxV := math.Inf(-1)
	minV := math.Inf(1)
	sum := 0.0
	count := 0
	for _, row := range g {
		for _, v := range row {
			if v > maxV {
				maxV = v
			}
			if v < minV {
				minV = v
			}
			sum += v
			count++
		}
	}

	return Stats{
		Max:    Round1(maxV),
		Min:    Round1(minV),
		Avg:    Round1(sum / float64(count)),
		Center: Round1(g.centerMean()),
		Delta:  Round1(maxV - minV),
	}, nil
}

// centerMean averages the 3x3 neighborhood around (h/2, w/2), clamped to
// the grid bounds so 1xN and Nx1 grids still have a defined center.
func (g Grid) centerMean() float64 {
	h := len(g)
	w := len(g[0])
	cy := h / 2
	cx := w / 2

	rowLo := max(0, cy-1)
	rowHi := min(h-1, cy+1)
	colLo := max(0, cx-1)
	colHi := min(w-1, cx+1)

	sum := 0.0
	count := 0
	for y := rowLo; y <= rowHi; y++ {
		for x := colLo; x <= colHi; x++ {
			sum += g[y][x]
			count++
		}
	}
	return sum / float64(count)
}

// ErrEmptyGrid is returned when the decoder produced no temperature data.
var ErrEmptyGrid = errors.New("empty temperature grid")
