package dataset

import "math"

// DefaultIdentityTol is the numerical tolerance used when deciding whether
// two spatial references denote the same coordinate system.
const DefaultIdentityTol = 1e-9

// SpatialReference describes the coordinate system of a Grid. Values are
// immutable once constructed.
type SpatialReference struct {
	// WKT is the well known text form of the projection and datum.
	WKT string
	// Authority is an authority code such as "EPSG:4326" when known.
	Authority string
	// LinearUnit names the linear unit of projected coordinates.
	LinearUnit string
	// MetersPerUnit is the scale factor from LinearUnit to meters.
	MetersPerUnit float64
}

// Compatible reports whether s and other denote the same coordinate system
// up to DefaultIdentityTol. A shared authority code short-circuits the
// comparison; otherwise the WKT and unit scale must agree.
func (s SpatialReference) Compatible(other SpatialReference) bool {
	if s.Authority != "" && s.Authority == other.Authority {
		return true
	}
	if s.WKT != other.WKT {
		return false
	}
	if s.MetersPerUnit == 0 && other.MetersPerUnit == 0 {
		return true
	}
	return math.Abs(s.MetersPerUnit-other.MetersPerUnit) <= DefaultIdentityTol
}
