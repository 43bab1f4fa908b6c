package derive

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/nci/gridset/dataset"
)

// Slice presents one index along an outer axis of a higher-dimensional
// grid as a lower-dimensional grid, lazily. Reading a slice reads only the
// corresponding window of the source.
type Slice struct {
	src         dataset.Grid
	axis        int
	index       int
	extent      dataset.Extent
	fingerprint string
}

// NewSlice fixes the named dimension ('t' or 'z') of src at index.
func NewSlice(src dataset.Grid, dim byte, index int) (*Slice, error) {
	if dim != 't' && dim != 'z' {
		return nil, fmt.Errorf("cannot slice dimension %q; only t and z slices are supported", string(dim))
	}
	srcExtent := src.Extent()
	axis := strings.IndexByte(srcExtent.Dimensions, dim)
	if axis < 0 {
		return nil, fmt.Errorf("grid %s has no %q dimension", src.DisplayName(), string(dim))
	}
	if index < 0 || index >= srcExtent.Counts[axis] {
		return nil, &dataset.OutOfBoundsError{
			Origin: []int{index}, Shape: []int{1}, Counts: []int{srcExtent.Counts[axis]},
		}
	}

	dims := srcExtent.Dimensions[:axis] + srcExtent.Dimensions[axis+1:]
	origin := dropAxis(srcExtent.Origin, axis)
	cellSize := dropAxis(srcExtent.CellSize, axis)
	counts := make([]int, 0, len(srcExtent.Counts)-1)
	for i, c := range srcExtent.Counts {
		if i != axis {
			counts = append(counts, c)
		}
	}
	extent, err := dataset.NewExtent(dims, origin, cellSize, counts)
	if err != nil {
		return nil, err
	}

	h := xxhash.New()
	h.WriteString(src.Fingerprint())
	h.WriteString(fmt.Sprintf("|slice:%s=%d", string(dim), index))

	return &Slice{
		src:         src,
		axis:        axis,
		index:       index,
		extent:      extent,
		fingerprint: fmt.Sprintf("slice:%016x", h.Sum64()),
	}, nil
}

func dropAxis(vals []float64, axis int) []float64 {
	out := make([]float64, 0, len(vals)-1)
	for i, v := range vals {
		if i != axis {
			out = append(out, v)
		}
	}
	return out
}

func (s *Slice) DisplayName() string {
	return fmt.Sprintf("%s[%s=%d]", s.src.DisplayName(), string(s.src.Extent().Dimensions[s.axis]), s.index)
}

func (s *Slice) Kind() dataset.Kind                         { return dataset.KindGrid }
func (s *Slice) Extent() dataset.Extent                     { return s.extent }
func (s *Slice) SpatialReference() dataset.SpatialReference { return s.src.SpatialReference() }
func (s *Slice) Dtype() dataset.Dtype                       { return s.src.Dtype() }
func (s *Slice) NoData() float64                            { return s.src.NoData() }
func (s *Slice) UnscaledNoData() (float64, bool)            { return s.src.UnscaledNoData() }
func (s *Slice) Fingerprint() string                        { return s.fingerprint }

// Inputs exposes the dependency edge to the source grid.
func (s *Slice) Inputs() []dataset.Grid { return []dataset.Grid{s.src} }

// Close releases nothing; the source grid stays owned by its creator.
func (s *Slice) Close() error { return nil }

func (s *Slice) ReadBlock(origin, shape []int) (dataset.Block, error) {
	if err := s.extent.CheckWindow(origin, shape); err != nil {
		return nil, err
	}

	srcOrigin := make([]int, 0, len(origin)+1)
	srcShape := make([]int, 0, len(shape)+1)
	for i := 0; i <= len(origin); i++ {
		switch {
		case i < s.axis:
			srcOrigin = append(srcOrigin, origin[i])
			srcShape = append(srcShape, shape[i])
		case i == s.axis:
			srcOrigin = append(srcOrigin, s.index)
			srcShape = append(srcShape, 1)
		default:
			srcOrigin = append(srcOrigin, origin[i-1])
			srcShape = append(srcShape, shape[i-1])
		}
	}

	w, err := s.src.ReadBlock(srcOrigin, srcShape)
	if err != nil {
		return nil, err
	}

	// The fixed axis has length one, so the cell order of the source
	// window already matches the sliced shape.
	out := dataset.NewBlock(w.Dtype(), shape)
	for i := 0; i < w.Len(); i++ {
		out.Set(i, w.At(i))
	}
	return out, nil
}
