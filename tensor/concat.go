package tensor

import "fmt"

// ParallelConcat copies src into leading-dimension row `row` of dst.
// src must have exactly as many elements as one row of dst. Distinct rows
// of the same destination may be written concurrently; writes to the same
// row must be serialized by the caller.
func ParallelConcat(dst *Tensor, row int, src *Tensor) error {
	if dst.Rank() == 0 {
		return fmt.Errorf("%w: destination is a scalar", ErrInvalidShape)
	}
	if row < 0 || row >= dst.Dim(0) {
		return fmt.Errorf("%w: row %d out of %d", ErrInvalidShape, row, dst.Dim(0))
	}
	if dst.dtype != src.dtype {
		return fmt.Errorf("%w: cannot write %s into %s", ErrDTypeMismatch, src.dtype, dst.dtype)
	}
	rowLen := dst.RowElements()
	if src.NumElements() != rowLen {
		return fmt.Errorf("%w: row has %d elements, source has %d",
			ErrShapeMismatch, rowLen, src.NumElements())
	}
	return copyRange(dst.dtype, dst.data, src.data, row*rowLen, 0, rowLen)
}

// CopyRows copies the first n leading-dimension rows of src into dst.
// Both tensors must share dtype and row element count, and each must have
// at least n rows.
func CopyRows(dst *Tensor, src *Tensor, n int) error {
	if dst.Rank() == 0 || src.Rank() == 0 {
		return fmt.Errorf("%w: rank-0 operand", ErrInvalidShape)
	}
	if dst.dtype != src.dtype {
		return fmt.Errorf("%w: cannot copy %s into %s", ErrDTypeMismatch, src.dtype, dst.dtype)
	}
	rowLen := dst.RowElements()
	if src.RowElements() != rowLen {
		return fmt.Errorf("%w: destination row has %d elements, source row has %d",
			ErrShapeMismatch, rowLen, src.RowElements())
	}
	if n < 0 || n > dst.Dim(0) || n > src.Dim(0) {
		return fmt.Errorf("%w: cannot copy %d rows (dst %d, src %d)",
			ErrInvalidShape, n, dst.Dim(0), src.Dim(0))
	}
	return copyRange(dst.dtype, dst.data, src.data, 0, 0, n*rowLen)
}
