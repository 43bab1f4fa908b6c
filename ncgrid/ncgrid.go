// Package ncgrid adapts a NetCDF variable to the dataset.Grid contract
// using the pure-Go go-native-netcdf reader. The file handle is not
// assumed thread-safe; physical reads are serialized per grid while
// evaluation above stays concurrent.
package ncgrid

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/nci/gridset/cache"
	"github.com/nci/gridset/dataset"
)

// Grid reads one variable of a NetCDF file.
type Grid struct {
	path     string
	variable string

	mu     sync.Mutex
	group  api.Group
	vg     api.VarGetter
	closed bool

	extent         dataset.Extent
	srs            dataset.SpatialReference
	dtype          dataset.Dtype
	noData         float64
	unscaledNoData float64
	hasUnscaled    bool
	fingerprint    string
}

var goTypeToDtype = map[string]dataset.Dtype{
	"int8":    dataset.Byte,
	"uint8":   dataset.Byte,
	"int16":   dataset.Int16,
	"uint16":  dataset.UInt16,
	"int32":   dataset.Int32,
	"float32": dataset.Float32,
	"float64": dataset.Float64,
}

// Open binds a grid to the named variable. An empty variable selects the
// file's first variable. Backend metadata is resolved here once and
// memoized for the grid's lifetime.
func Open(path, variable string) (*Grid, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: path, Err: err}
	}

	if len(variable) == 0 {
		names := group.ListVariables()
		if len(names) == 0 {
			group.Close()
			return nil, &dataset.BackendUnavailableError{Resource: path, Err: fmt.Errorf("file has no variables")}
		}
		variable = names[0]
	}

	vg, err := group.GetVarGetter(variable)
	if err != nil {
		group.Close()
		return nil, &dataset.BackendUnavailableError{Resource: path, Err: fmt.Errorf("variable %s: %w", variable, err)}
	}

	g := &Grid{
		path:     path,
		variable: variable,
		group:    group,
		vg:       vg,
	}
	if err := g.resolveMetadata(); err != nil {
		group.Close()
		return nil, err
	}

	signature, err := cache.FileSignature(path)
	if err != nil {
		group.Close()
		return nil, &dataset.BackendUnavailableError{Resource: path, Err: err}
	}
	g.fingerprint = fmt.Sprintf("nc:%s:%s", signature, variable)

	return g, nil
}

func (g *Grid) resolveMetadata() error {
	dtype, found := goTypeToDtype[g.vg.GoType()]
	if !found {
		return fmt.Errorf("variable %s has unsupported type %s", g.variable, g.vg.GoType())
	}
	g.dtype = dtype

	shape, err := g.shapeFromSample()
	if err != nil {
		return err
	}

	var dims string
	switch len(shape) {
	case 2:
		dims = dataset.DimYX
	case 3:
		dims = dataset.DimTYX
	case 4:
		dims = dataset.DimTZYX
	default:
		return fmt.Errorf("variable %s has %d dimensions; 2 to 4 are supported", g.variable, len(shape))
	}

	origin := make([]float64, len(shape))
	cellSize := make([]float64, len(shape))
	for i := range cellSize {
		cellSize[i] = 1
	}
	// Coordinate variables named after the dimensions refine the default
	// index-space extent when present.
	for i, dimName := range g.vg.Dimensions() {
		if o, step, ok := g.coordAxis(dimName); ok {
			origin[i] = o
			cellSize[i] = step
		}
	}

	g.extent, err = dataset.NewExtent(dims, origin, cellSize, shape)
	if err != nil {
		return err
	}

	attrs := g.vg.Attributes()
	g.noData = defaultNoData(dtype)
	fill, hasFill := attrFloat(attrs, "_FillValue")
	missing, hasMissing := attrFloat(attrs, "missing_value")
	switch {
	case hasFill && hasMissing && !dataset.NoDataEqual(fill, missing):
		g.noData = missing
		g.unscaledNoData = fill
		g.hasUnscaled = true
	case hasFill:
		g.noData = fill
	case hasMissing:
		g.noData = missing
	}

	if srsName, ok := attrString(attrs, "grid_mapping"); ok {
		g.srs.Authority = srsName
	}
	if units, ok := attrString(attrs, "units"); ok {
		g.srs.LinearUnit = units
	}

	return nil
}

func defaultNoData(d dataset.Dtype) float64 {
	if d.IsFloat() {
		return math.NaN()
	}
	return 0
}

// shapeFromSample determines per-axis lengths: the outer length from the
// getter, the inner lengths by inspecting the first row.
func (g *Grid) shapeFromSample() ([]int, error) {
	outer := int(g.vg.Len())
	sample, err := g.vg.GetSlice(0, 1)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: g.path, Err: err}
	}
	shape := []int{outer}
	v := reflect.ValueOf(sample)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return nil, fmt.Errorf("variable %s has an empty outer dimension", g.variable)
	}
	v = v.Index(0)
	for v.Kind() == reflect.Slice {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			return nil, fmt.Errorf("variable %s has an empty dimension", g.variable)
		}
		v = v.Index(0)
	}
	return shape, nil
}

// coordAxis reads the origin and step of a coordinate variable.
func (g *Grid) coordAxis(dimName string) (float64, float64, bool) {
	cv, err := g.group.GetVarGetter(dimName)
	if err != nil || cv.Len() == 0 {
		return 0, 0, false
	}
	n := cv.Len()
	if n > 2 {
		n = 2
	}
	vals, err := cv.GetSlice(0, n)
	if err != nil {
		return 0, 0, false
	}
	v := reflect.ValueOf(vals)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return 0, 0, false
	}
	origin := toFloat(v.Index(0))
	step := 1.0
	if v.Len() > 1 {
		step = toFloat(v.Index(1)) - origin
	}
	return origin, step, true
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Interface:
		return toFloat(v.Elem())
	}
	return math.NaN()
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	raw, has := attrs.Get(key)
	if !has {
		return 0, false
	}
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Slice && v.Len() > 0 {
		v = v.Index(0)
	}
	f := toFloat(v)
	if math.IsNaN(f) && !v.CanFloat() {
		return 0, false
	}
	return f, true
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	raw, has := attrs.Get(key)
	if !has {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func (g *Grid) DisplayName() string {
	return fmt.Sprintf("%s:%s", g.path, g.variable)
}

func (g *Grid) Kind() dataset.Kind                         { return dataset.KindGrid }
func (g *Grid) Extent() dataset.Extent                     { return g.extent }
func (g *Grid) SpatialReference() dataset.SpatialReference { return g.srs }
func (g *Grid) Dtype() dataset.Dtype                       { return g.dtype }
func (g *Grid) NoData() float64                            { return g.noData }
func (g *Grid) Fingerprint() string                        { return g.fingerprint }

func (g *Grid) UnscaledNoData() (float64, bool) {
	return g.unscaledNoData, g.hasUnscaled
}

// Close releases the file handle deterministically. Safe to call twice.
func (g *Grid) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.group.Close()
		g.closed = true
	}
	return nil
}

func (g *Grid) ReadBlock(origin, shape []int) (dataset.Block, error) {
	if err := g.extent.CheckWindow(origin, shape); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, &dataset.BackendUnavailableError{Resource: g.path, Err: fmt.Errorf("grid is closed")}
	}

	rows, err := g.vg.GetSlice(int64(origin[0]), int64(origin[0]+shape[0]))
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: g.path, Err: err}
	}

	out := dataset.NewBlock(g.dtype, shape)
	di := 0
	rv := reflect.ValueOf(rows)
	for r := 0; r < rv.Len(); r++ {
		di = fillWindow(out, di, rv.Index(r), origin, shape, 1)
	}
	return out, nil
}

// fillWindow copies the window of one nested-slice row into out, walking
// the remaining axes recursively.
func fillWindow(out dataset.Block, di int, v reflect.Value, origin, shape []int, axis int) int {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if axis == len(shape) {
		out.Set(di, toFloat(v))
		return di + 1
	}
	for i := origin[axis]; i < origin[axis]+shape[axis]; i++ {
		di = fillWindow(out, di, v.Index(i), origin, shape, axis+1)
	}
	return di
}
