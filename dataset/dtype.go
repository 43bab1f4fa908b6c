package dataset

import "fmt"

// Dtype identifies the cell data type of a Grid using the same type strings
// GDAL reports for raster bands.
type Dtype string

const (
	Byte    Dtype = "Byte"
	Int16   Dtype = "Int16"
	UInt16  Dtype = "UInt16"
	Int32   Dtype = "Int32"
	Float32 Dtype = "Float32"
	Float64 Dtype = "Float64"
)

// Size returns the width of one cell in bytes.
func (d Dtype) Size() int {
	switch d {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (d Dtype) IsFloat() bool {
	return d == Float32 || d == Float64
}

func (d Dtype) Valid() bool {
	return d.Size() > 0
}

// ParseDtype maps a type string onto a Dtype.
func ParseDtype(s string) (Dtype, error) {
	d := Dtype(s)
	if !d.Valid() {
		return "", fmt.Errorf("unrecognised data type %q", s)
	}
	return d, nil
}
