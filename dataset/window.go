package dataset

// CopyWindow copies the window at origin with the given shape out of a
// source buffer whose full shape is srcCounts, into dst (which must have
// shape's length). Shapes are row-major in dimension-string order.
func CopyWindow(dst, src Block, srcCounts, origin, shape []int) {
	rank := len(srcCounts)

	// Strides of the source array, innermost axis last.
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= srcCounts[i]
	}

	idx := make([]int, rank)
	di := 0
	for {
		si := 0
		for i := 0; i < rank; i++ {
			si += (origin[i] + idx[i]) * strides[i]
		}
		dst.Set(di, src.At(si))
		di++

		// Odometer increment over the window shape.
		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// PasteWindow is the inverse of CopyWindow: it writes src (which has
// shape's length) into the window at origin of a destination buffer whose
// full shape is dstCounts.
func PasteWindow(dst, src Block, dstCounts, origin, shape []int) {
	rank := len(dstCounts)

	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dstCounts[i]
	}

	idx := make([]int, rank)
	si := 0
	for {
		di := 0
		for i := 0; i < rank; i++ {
			di += (origin[i] + idx[i]) * strides[i]
		}
		dst.Set(di, src.At(si))
		si++

		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
