package dataset

import (
	"fmt"
	"math"
)

// Dimension strings follow the "yx" family: optional leading t and z axes
// followed by y and x. Array axis order matches the dimension string.
const (
	DimYX   = "yx"
	DimZYX  = "zyx"
	DimTYX  = "tyx"
	DimTZYX = "tzyx"
)

// Extent describes a Grid's footprint: the corner coordinate, coordinate
// increment and cell count of every axis. Values are immutable once
// constructed.
type Extent struct {
	Dimensions string
	Origin     []float64
	CellSize   []float64
	Counts     []int
}

// NewExtent validates axis lengths against the dimension string.
func NewExtent(dimensions string, origin, cellSize []float64, counts []int) (Extent, error) {
	switch dimensions {
	case DimYX, DimZYX, DimTYX, DimTZYX:
	default:
		return Extent{}, fmt.Errorf("unrecognised dimensions %q", dimensions)
	}
	n := len(dimensions)
	if len(origin) != n || len(cellSize) != n || len(counts) != n {
		return Extent{}, fmt.Errorf("dimensions %q require %d axes, got origin=%d cellSize=%d counts=%d",
			dimensions, n, len(origin), len(cellSize), len(counts))
	}
	for i, c := range counts {
		if c <= 0 {
			return Extent{}, fmt.Errorf("axis %c has non-positive cell count %d", dimensions[i], c)
		}
	}
	return Extent{Dimensions: dimensions, Origin: origin, CellSize: cellSize, Counts: counts}, nil
}

func (e Extent) Rank() int { return len(e.Dimensions) }

// NumCells is the total cell count across all axes.
func (e Extent) NumCells() int {
	n := 1
	for _, c := range e.Counts {
		n *= c
	}
	return n
}

// Equal reports whether two extents share dimension string, origin, cell
// size and counts. Coordinates compare up to DefaultIdentityTol.
func (e Extent) Equal(other Extent) bool {
	if e.Dimensions != other.Dimensions {
		return false
	}
	for i := range e.Counts {
		if e.Counts[i] != other.Counts[i] {
			return false
		}
		if math.Abs(e.Origin[i]-other.Origin[i]) > DefaultIdentityTol {
			return false
		}
		if math.Abs(e.CellSize[i]-other.CellSize[i]) > DefaultIdentityTol {
			return false
		}
	}
	return true
}

// Contains reports whether the window at origin with the given shape lies
// within the extent.
func (e Extent) Contains(origin, shape []int) bool {
	if len(origin) != e.Rank() || len(shape) != e.Rank() {
		return false
	}
	for i := range origin {
		if origin[i] < 0 || shape[i] <= 0 || origin[i]+shape[i] > e.Counts[i] {
			return false
		}
	}
	return true
}

// CheckWindow returns an OutOfBoundsError when the window is not contained.
func (e Extent) CheckWindow(origin, shape []int) error {
	if !e.Contains(origin, shape) {
		return &OutOfBoundsError{Origin: origin, Shape: shape, Counts: e.Counts}
	}
	return nil
}
