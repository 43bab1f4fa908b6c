package dataset

// Block is a typed buffer holding the cells of one read window. Cells are
// stored in the axis order of the owning grid's dimension string, row-major.
// At and Set move values through float64, which represents every supported
// cell type exactly except the extremes of Int32 and beyond; typed access
// goes through the concrete block structs.
type Block interface {
	Dtype() Dtype
	Shape() []int
	Len() int
	At(i int) float64
	Set(i int, v float64)
	Fill(v float64)
}

func blockLen(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// NewBlock allocates a zeroed block of the given type and shape.
func NewBlock(d Dtype, shape []int) Block {
	switch d {
	case Byte:
		return &ByteBlock{Data: make([]uint8, blockLen(shape)), shape: shape}
	case Int16:
		return &Int16Block{Data: make([]int16, blockLen(shape)), shape: shape}
	case UInt16:
		return &UInt16Block{Data: make([]uint16, blockLen(shape)), shape: shape}
	case Int32:
		return &Int32Block{Data: make([]int32, blockLen(shape)), shape: shape}
	case Float32:
		return &Float32Block{Data: make([]float32, blockLen(shape)), shape: shape}
	case Float64:
		return &Float64Block{Data: make([]float64, blockLen(shape)), shape: shape}
	}
	return nil
}

type ByteBlock struct {
	Data  []uint8
	shape []int
}

func NewByteBlock(data []uint8, shape []int) *ByteBlock { return &ByteBlock{Data: data, shape: shape} }

func (b *ByteBlock) Dtype() Dtype        { return Byte }
func (b *ByteBlock) Shape() []int        { return b.shape }
func (b *ByteBlock) Len() int            { return len(b.Data) }
func (b *ByteBlock) At(i int) float64    { return float64(b.Data[i]) }
func (b *ByteBlock) Set(i int, v float64) { b.Data[i] = uint8(v) }
func (b *ByteBlock) Fill(v float64) {
	fill := uint8(v)
	for i := range b.Data {
		b.Data[i] = fill
	}
}

type Int16Block struct {
	Data  []int16
	shape []int
}

func NewInt16Block(data []int16, shape []int) *Int16Block { return &Int16Block{Data: data, shape: shape} }

func (b *Int16Block) Dtype() Dtype        { return Int16 }
func (b *Int16Block) Shape() []int        { return b.shape }
func (b *Int16Block) Len() int            { return len(b.Data) }
func (b *Int16Block) At(i int) float64    { return float64(b.Data[i]) }
func (b *Int16Block) Set(i int, v float64) { b.Data[i] = int16(v) }
func (b *Int16Block) Fill(v float64) {
	fill := int16(v)
	for i := range b.Data {
		b.Data[i] = fill
	}
}

type UInt16Block struct {
	Data  []uint16
	shape []int
}

func NewUInt16Block(data []uint16, shape []int) *UInt16Block {
	return &UInt16Block{Data: data, shape: shape}
}

func (b *UInt16Block) Dtype() Dtype        { return UInt16 }
func (b *UInt16Block) Shape() []int        { return b.shape }
func (b *UInt16Block) Len() int            { return len(b.Data) }
func (b *UInt16Block) At(i int) float64    { return float64(b.Data[i]) }
func (b *UInt16Block) Set(i int, v float64) { b.Data[i] = uint16(v) }
func (b *UInt16Block) Fill(v float64) {
	fill := uint16(v)
	for i := range b.Data {
		b.Data[i] = fill
	}
}

type Int32Block struct {
	Data  []int32
	shape []int
}

func NewInt32Block(data []int32, shape []int) *Int32Block { return &Int32Block{Data: data, shape: shape} }

func (b *Int32Block) Dtype() Dtype        { return Int32 }
func (b *Int32Block) Shape() []int        { return b.shape }
func (b *Int32Block) Len() int            { return len(b.Data) }
func (b *Int32Block) At(i int) float64    { return float64(b.Data[i]) }
func (b *Int32Block) Set(i int, v float64) { b.Data[i] = int32(v) }
func (b *Int32Block) Fill(v float64) {
	fill := int32(v)
	for i := range b.Data {
		b.Data[i] = fill
	}
}

type Float32Block struct {
	Data  []float32
	shape []int
}

func NewFloat32Block(data []float32, shape []int) *Float32Block {
	return &Float32Block{Data: data, shape: shape}
}

func (b *Float32Block) Dtype() Dtype        { return Float32 }
func (b *Float32Block) Shape() []int        { return b.shape }
func (b *Float32Block) Len() int            { return len(b.Data) }
func (b *Float32Block) At(i int) float64    { return float64(b.Data[i]) }
func (b *Float32Block) Set(i int, v float64) { b.Data[i] = float32(v) }
func (b *Float32Block) Fill(v float64) {
	fill := float32(v)
	for i := range b.Data {
		b.Data[i] = fill
	}
}

type Float64Block struct {
	Data  []float64
	shape []int
}

func NewFloat64Block(data []float64, shape []int) *Float64Block {
	return &Float64Block{Data: data, shape: shape}
}

func (b *Float64Block) Dtype() Dtype        { return Float64 }
func (b *Float64Block) Shape() []int        { return b.shape }
func (b *Float64Block) Len() int            { return len(b.Data) }
func (b *Float64Block) At(i int) float64    { return b.Data[i] }
func (b *Float64Block) Set(i int, v float64) { b.Data[i] = v }
func (b *Float64Block) Fill(v float64) {
	for i := range b.Data {
		b.Data[i] = v
	}
}
