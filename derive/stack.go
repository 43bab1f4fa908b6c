package derive

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/nci/gridset/dataset"
)

// TimeStack presents a sequence of 2D grids sharing one footprint as a
// single lazy 3D cube with a leading t axis. Member grids are read only
// for the t indices a window touches.
type TimeStack struct {
	name        string
	members     []dataset.Grid
	extent      dataset.Extent
	srs         dataset.SpatialReference
	fingerprint string
}

// NewTimeStack stacks the members in order. Every member must be a "yx"
// grid with the same data type and NoData, a compatible spatial reference
// and an extent equal to the first member's. tOrigin and tStep define the
// coordinate of the new axis.
func NewTimeStack(name string, members []dataset.Grid, tOrigin, tStep float64) (*TimeStack, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("time stack requires at least one member")
	}

	first := members[0]
	base := first.Extent()
	if base.Dimensions != dataset.DimYX {
		return nil, &dataset.IncompatibleGridsError{
			Reason: fmt.Sprintf("stack members must be yx grids, got %q", base.Dimensions),
		}
	}
	for i, m := range members[1:] {
		if m.Dtype() != first.Dtype() {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("member %d type %s does not match %s", i+1, m.Dtype(), first.Dtype()),
			}
		}
		if !dataset.NoDataEqual(m.NoData(), first.NoData()) {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("member %d NoData %v does not match %v", i+1, m.NoData(), first.NoData()),
			}
		}
		if !first.SpatialReference().Compatible(m.SpatialReference()) {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("member %d has an incompatible spatial reference", i+1),
			}
		}
		if !base.Equal(m.Extent()) {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("member %d extent %v does not match %v", i+1, m.Extent().Counts, base.Counts),
			}
		}
	}

	extent, err := dataset.NewExtent(dataset.DimTYX,
		[]float64{tOrigin, base.Origin[0], base.Origin[1]},
		[]float64{tStep, base.CellSize[0], base.CellSize[1]},
		[]int{len(members), base.Counts[0], base.Counts[1]})
	if err != nil {
		return nil, err
	}

	h := xxhash.New()
	for _, m := range members {
		h.WriteString(m.Fingerprint())
		h.WriteString("|")
	}

	return &TimeStack{
		name:        name,
		members:     members,
		extent:      extent,
		srs:         first.SpatialReference(),
		fingerprint: fmt.Sprintf("stack:%016x", h.Sum64()),
	}, nil
}

func (ts *TimeStack) DisplayName() string                        { return ts.name }
func (ts *TimeStack) Kind() dataset.Kind                         { return dataset.KindGrid }
func (ts *TimeStack) Extent() dataset.Extent                     { return ts.extent }
func (ts *TimeStack) SpatialReference() dataset.SpatialReference { return ts.srs }
func (ts *TimeStack) Dtype() dataset.Dtype                       { return ts.members[0].Dtype() }
func (ts *TimeStack) NoData() float64                            { return ts.members[0].NoData() }
func (ts *TimeStack) UnscaledNoData() (float64, bool)            { return ts.members[0].UnscaledNoData() }
func (ts *TimeStack) Fingerprint() string                        { return ts.fingerprint }

// Inputs exposes the dependency edges to the stacked members.
func (ts *TimeStack) Inputs() []dataset.Grid { return ts.members }

// Close releases nothing; members stay owned by their creator.
func (ts *TimeStack) Close() error { return nil }

func (ts *TimeStack) ReadBlock(origin, shape []int) (dataset.Block, error) {
	if err := ts.extent.CheckWindow(origin, shape); err != nil {
		return nil, err
	}

	out := dataset.NewBlock(ts.Dtype(), shape)
	planeLen := shape[1] * shape[2]

	// Each t index fills a disjoint plane of the output, so member reads
	// fan out without further synchronization.
	errs := make([]error, shape[0])
	limiter := newConcLimiter(stackReadConcurrency)
	for t := 0; t < shape[0]; t++ {
		limiter.acquire()
		go func(t int) {
			defer limiter.release()
			w, err := ts.members[origin[0]+t].ReadBlock(origin[1:], shape[1:])
			if err != nil {
				errs[t] = fmt.Errorf("reading stack member %d: %w", origin[0]+t, err)
				return
			}
			for i := 0; i < planeLen; i++ {
				out.Set(t*planeLen+i, w.At(i))
			}
		}(t)
	}
	limiter.wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
