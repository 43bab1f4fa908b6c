package collection

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/nci/gridset/dataset"
)

// loadRawGrid reads a flat little-endian binary file described by its
// sidecar into an in-memory grid. Raw files are small by construction;
// they exist for fixtures and intermediate exports, not cubes.
func loadRawGrid(filePath string, sc *Sidecar) (dataset.Grid, error) {
	dtype, err := sc.Dtype()
	if err != nil {
		return nil, err
	}
	extent, err := sc.Extent()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: filePath, Err: err}
	}
	defer f.Close()

	n := extent.NumCells()
	var block dataset.Block
	switch dtype {
	case dataset.Byte:
		data := make([]uint8, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewByteBlock(data, extent.Counts)
	case dataset.Int16:
		data := make([]int16, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewInt16Block(data, extent.Counts)
	case dataset.UInt16:
		data := make([]uint16, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewUInt16Block(data, extent.Counts)
	case dataset.Int32:
		data := make([]int32, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewInt32Block(data, extent.Counts)
	case dataset.Float32:
		data := make([]float32, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewFloat32Block(data, extent.Counts)
	case dataset.Float64:
		data := make([]float64, n)
		err = binary.Read(f, binary.LittleEndian, data)
		block = dataset.NewFloat64Block(data, extent.Counts)
	default:
		return nil, fmt.Errorf("unsupported raw grid type %s", dtype)
	}
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: filePath, Err: err}
	}

	name := sc.Name
	if len(name) == 0 {
		name = filePath
	}
	var opts []dataset.MemGridOption
	if sc.UnscaledNoData != nil {
		opts = append(opts, dataset.WithUnscaledNoData(*sc.UnscaledNoData))
	}
	return dataset.NewMemGrid(name, block, extent, sc.SpatialReference(), sc.NoData, opts...)
}
