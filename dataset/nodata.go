package dataset

import "math"

// NoDataEqual reports whether a and b are the same NoData sentinel. IEEE
// comparison of NaN with itself is false, so floating grids whose NoData is
// NaN would otherwise never match their own sentinel.
func NoDataEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

// IsNoData reports whether v is the NoData sentinel of g, consulting the
// unscaled sentinel as well when the grid carries one.
func IsNoData(g Grid, v float64) bool {
	if NoDataEqual(v, g.NoData()) {
		return true
	}
	if unscaled, ok := g.UnscaledNoData(); ok {
		return NoDataEqual(v, unscaled)
	}
	return false
}
