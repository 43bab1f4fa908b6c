// Package dataset defines the common model for tabular and gridded
// geospatial data accessed through heterogeneous backends. Backends expose
// their rasters through the Grid contract and their groupings through the
// Collection contract; nothing in this package touches a concrete storage
// format.
package dataset

// Kind classifies a collection member.
type Kind string

const (
	KindGrid       Kind = "grid"
	KindTable      Kind = "table"
	KindCollection Kind = "collection"
)

// Dataset is the base contract shared by grids, tables and collections.
type Dataset interface {
	DisplayName() string
	Kind() Kind
}

// Grid is one raster. Metadata accessors perform no I/O beyond the first
// resolution of backend metadata, which implementations memoize for the
// grid's lifetime. Implementations wrapping OS-level resources must release
// them in Close on every path; Close is idempotent.
//
// A "value is NoData" test must never use plain equality when the data type
// is floating point; use IsNoData or NoDataEqual.
type Grid interface {
	Dataset

	// ReadBlock returns the cells of the window with the given origin and
	// shape, both in the axis order of the extent's dimension string.
	// Fails with OutOfBoundsError when the window exceeds the extent and
	// with BackendUnavailableError when the resource cannot be accessed.
	ReadBlock(origin, shape []int) (Block, error)

	Extent() Extent
	SpatialReference() SpatialReference
	Dtype() Dtype

	// NoData is the grid's NoData sentinel in scaled (display) values.
	NoData() float64

	// UnscaledNoData reports the distinct unscaled sentinel when the
	// backend stores one.
	UnscaledNoData() (float64, bool)

	// Fingerprint is the canonical identity of the backing resource plus
	// parameters, stable across processes while the resource is unchanged.
	// Derived grids fold their function identity and inputs into it.
	Fingerprint() string

	Close() error
}

// DefaultBlockSize is the per-axis cell count ReadFull uses when tiling
// the two innermost (y, x) axes. A tuning default only; results do not
// depend on it.
const DefaultBlockSize = 256

// ReadFull materializes the whole grid, reading it block by block so
// backends never have to serve the full extent in one request.
func ReadFull(g Grid) (Block, error) {
	extent := g.Extent()
	rank := extent.Rank()

	out := NewBlock(g.Dtype(), extent.Counts)
	origin := make([]int, rank)
	shape := make([]int, rank)
	copy(shape, extent.Counts)

	yAxis, xAxis := rank-2, rank-1
	for y := 0; y < extent.Counts[yAxis]; y += DefaultBlockSize {
		for x := 0; x < extent.Counts[xAxis]; x += DefaultBlockSize {
			origin[yAxis], origin[xAxis] = y, x
			shape[yAxis] = min(DefaultBlockSize, extent.Counts[yAxis]-y)
			shape[xAxis] = min(DefaultBlockSize, extent.Counts[xAxis]-x)

			block, err := g.ReadBlock(origin, shape)
			if err != nil {
				return nil, err
			}
			PasteWindow(out, block, extent.Counts, origin, shape)
		}
	}
	return out, nil
}
