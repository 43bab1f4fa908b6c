package derive

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/nci/gridset/cache"
	"github.com/nci/gridset/dataset"
)

// ErrCyclicDerivation is the reason string carried by the
// IncompatibleGridsError raised when a derivation graph would contain a
// cycle.
const ErrCyclicDerivation = "cyclic derivation graph"

// DerivedGrid is a Grid whose values are produced by invoking a Function
// with windows read from its input grids. Construction is side-effect
// free; evaluation happens only on read, so derived grids compose
// arbitrarily deep without intermediate storage cost.
type DerivedGrid struct {
	name        string
	fn          Function
	inputs      []dataset.Grid
	extent      dataset.Extent
	srs         dataset.SpatialReference
	fingerprint string
	rc          *cache.ResultCache
}

type Option func(*DerivedGrid)

// WithName overrides the generated display name.
func WithName(name string) Option {
	return func(g *DerivedGrid) { g.name = name }
}

// WithCache routes block reads through a result cache keyed by the grid's
// fingerprint and the read window.
func WithCache(rc *cache.ResultCache) Option {
	return func(g *DerivedGrid) { g.rc = rc }
}

// New constructs a derived grid over the inputs. All compatibility checks
// happen here, not at first read: arity, spatial reference compatibility,
// extent equality and derivation-graph acyclicity. No input is read.
func New(fn Function, inputs []dataset.Grid, opts ...Option) (*DerivedGrid, error) {
	if err := fn.validate(); err != nil {
		return nil, err
	}
	if len(inputs) != fn.Arity {
		return nil, &dataset.IncompatibleGridsError{
			Reason: fmt.Sprintf("function %s takes %d grids, got %d", fn.Name, fn.Arity, len(inputs)),
		}
	}

	extent := inputs[0].Extent()
	srs := inputs[0].SpatialReference()
	for i, in := range inputs[1:] {
		if !srs.Compatible(in.SpatialReference()) {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("input %d has an incompatible spatial reference", i+1),
			}
		}
		if !extent.Equal(in.Extent()) {
			return nil, &dataset.IncompatibleGridsError{
				Reason: fmt.Sprintf("input %d extent %v does not match %v; implicit resampling is not supported", i+1, in.Extent().Counts, extent.Counts),
			}
		}
	}

	g := &DerivedGrid{
		fn:     fn,
		inputs: inputs,
		extent: extent,
		srs:    srs,
	}
	g.fingerprint = g.computeFingerprint()
	if len(g.name) == 0 {
		names := make([]string, len(inputs))
		for i, in := range inputs {
			names[i] = in.DisplayName()
		}
		g.name = fmt.Sprintf("%s(%s)", fn.Name, strings.Join(names, ", "))
	}

	if err := checkAcyclic(g.fingerprint, inputs); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// computeFingerprint folds the function identity and the input
// fingerprints into a canonical node identity. Two derivations of the same
// function over the same resources share it, whatever instances were used.
func (g *DerivedGrid) computeFingerprint() string {
	h := xxhash.New()
	h.WriteString(g.fn.Identity())
	for _, in := range g.inputs {
		h.WriteString("|")
		h.WriteString(in.Fingerprint())
	}
	return fmt.Sprintf("derived:%016x", h.Sum64())
}

// inputsProvider exposes the dependency edges of a composite grid. Any
// grid implementation may participate in cycle detection by implementing
// it; DerivedGrid, Slice and TimeStack all do.
type inputsProvider interface {
	Inputs() []dataset.Grid
}

// checkAcyclic walks the dependency graph below the inputs, keyed by
// fingerprint rather than transient object identity, and fails when the
// new node's fingerprint already occurs below it or when the existing
// graph carries a cycle.
func checkAcyclic(newFingerprint string, inputs []dataset.Grid) error {
	visited := map[string]bool{}
	onStack := map[string]bool{}

	var walk func(g dataset.Grid) error
	walk = func(g dataset.Grid) error {
		fp := g.Fingerprint()
		if fp == newFingerprint {
			return &dataset.IncompatibleGridsError{Reason: ErrCyclicDerivation}
		}
		if onStack[fp] {
			return &dataset.IncompatibleGridsError{Reason: ErrCyclicDerivation}
		}
		if visited[fp] {
			return nil
		}
		visited[fp] = true

		if ip, ok := g.(inputsProvider); ok {
			onStack[fp] = true
			for _, in := range ip.Inputs() {
				if err := walk(in); err != nil {
					return err
				}
			}
			onStack[fp] = false
		}
		return nil
	}

	for _, in := range inputs {
		if err := walk(in); err != nil {
			return err
		}
	}
	return nil
}

func (g *DerivedGrid) DisplayName() string                        { return g.name }
func (g *DerivedGrid) Kind() dataset.Kind                         { return dataset.KindGrid }
func (g *DerivedGrid) Extent() dataset.Extent                     { return g.extent }
func (g *DerivedGrid) SpatialReference() dataset.SpatialReference { return g.srs }
func (g *DerivedGrid) Dtype() dataset.Dtype                       { return g.fn.Output }
func (g *DerivedGrid) NoData() float64                            { return g.fn.OutputNoData }
func (g *DerivedGrid) UnscaledNoData() (float64, bool)            { return 0, false }
func (g *DerivedGrid) Fingerprint() string                        { return g.fingerprint }

// Inputs exposes the dependency edges of the derivation graph.
func (g *DerivedGrid) Inputs() []dataset.Grid { return g.inputs }

// Close releases nothing: input grids remain owned by the caller that
// constructed them and must be closed by that scope.
func (g *DerivedGrid) Close() error { return nil }

// ReadBlock evaluates the function over same-shaped windows read from each
// input. Results are identical whatever block tiling a caller chooses;
// block size is a tuning parameter, not a correctness parameter.
func (g *DerivedGrid) ReadBlock(origin, shape []int) (dataset.Block, error) {
	if err := g.extent.CheckWindow(origin, shape); err != nil {
		return nil, err
	}

	if g.rc == nil {
		return g.evaluate(origin, shape)
	}

	key := cache.NewKey(g.fingerprint, g.fn.Identity(), map[string]interface{}{
		"origin": fmt.Sprintf("%v", origin),
		"shape":  fmt.Sprintf("%v", shape),
	})
	v, err := g.rc.GetOrCompute(key, func() (interface{}, error) {
		return g.evaluate(origin, shape)
	})
	if err != nil {
		return nil, err
	}
	return v.(dataset.Block), nil
}

func (g *DerivedGrid) evaluate(origin, shape []int) (dataset.Block, error) {
	windows := make([]dataset.Block, len(g.inputs))
	for i, in := range g.inputs {
		w, err := in.ReadBlock(origin, shape)
		if err != nil {
			return nil, fmt.Errorf("reading input %d of %s: %w", i, g.name, err)
		}
		windows[i] = w
	}

	out := dataset.NewBlock(g.fn.Output, shape)
	args := make([]float64, len(windows))
	n := out.Len()
	for i := 0; i < n; i++ {
		hasNoData := false
		for j, w := range windows {
			v := w.At(i)
			args[j] = v
			if dataset.IsNoData(g.inputs[j], v) {
				hasNoData = true
			}
		}
		if hasNoData && !g.fn.HandlesNoData {
			out.Set(i, g.fn.OutputNoData)
			continue
		}
		out.Set(i, g.fn.Apply(args))
	}
	return out, nil
}
