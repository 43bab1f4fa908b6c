package dataset

import (
	"errors"
	"testing"
)

func mustExtent(t *testing.T, dims string, origin, cellSize []float64, counts []int) Extent {
	t.Helper()
	e, err := NewExtent(dims, origin, cellSize, counts)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExtentEqual(t *testing.T) {
	a := mustExtent(t, DimYX, []float64{10, 110}, []float64{-0.25, 0.25}, []int{40, 80})
	b := mustExtent(t, DimYX, []float64{10, 110}, []float64{-0.25, 0.25}, []int{40, 80})
	if !a.Equal(b) {
		t.Errorf("identical extents should compare equal")
	}

	c := mustExtent(t, DimYX, []float64{10, 110.5}, []float64{-0.25, 0.25}, []int{40, 80})
	if a.Equal(c) {
		t.Errorf("shifted origin should not compare equal")
	}

	d := mustExtent(t, DimTYX, []float64{0, 10, 110}, []float64{1, -0.25, 0.25}, []int{3, 40, 80})
	if a.Equal(d) {
		t.Errorf("different dimensionality should not compare equal")
	}
}

func TestExtentWindow(t *testing.T) {
	e := mustExtent(t, DimYX, []float64{0, 0}, []float64{1, 1}, []int{10, 10})

	if err := e.CheckWindow([]int{0, 0}, []int{10, 10}); err != nil {
		t.Errorf("full window should be in bounds: %v", err)
	}
	if err := e.CheckWindow([]int{5, 5}, []int{5, 5}); err != nil {
		t.Errorf("corner window should be in bounds: %v", err)
	}

	err := e.CheckWindow([]int{5, 5}, []int{6, 5})
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Errorf("overflowing window should fail with OutOfBoundsError, got %v", err)
	}
	if err := e.CheckWindow([]int{-1, 0}, []int{2, 2}); err == nil {
		t.Errorf("negative origin should be out of bounds")
	}
	if err := e.CheckWindow([]int{0, 0}, []int{0, 2}); err == nil {
		t.Errorf("empty shape should be rejected")
	}
}

func TestNewExtentValidation(t *testing.T) {
	if _, err := NewExtent("xy", []float64{0, 0}, []float64{1, 1}, []int{2, 2}); err == nil {
		t.Errorf("dimension string xy should be rejected")
	}
	if _, err := NewExtent(DimYX, []float64{0}, []float64{1, 1}, []int{2, 2}); err == nil {
		t.Errorf("axis count mismatch should be rejected")
	}
	if _, err := NewExtent(DimYX, []float64{0, 0}, []float64{1, 1}, []int{2, 0}); err == nil {
		t.Errorf("zero cell count should be rejected")
	}
}
