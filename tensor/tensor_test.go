package tensor

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ZeroInitialized(t *testing.T) {
	tr, err := New(Int64, Shape{2, 3})
	require.NoError(t, err)
	require.Equal(t, 6, tr.NumElements())
	require.Equal(t, 3, tr.RowElements())
	for _, v := range tr.Int64s() {
		require.Zero(t, v)
	}
}

func TestNew_InvalidDType(t *testing.T) {
	_, err := New(Invalid, Shape{1})
	require.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestFromData_LengthMismatch(t *testing.T) {
	_, err := FromData(Int64, Shape{3}, []int64{1, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestScalarAndVectorConstructors(t *testing.T) {
	s := ScalarInt64(7)
	require.Equal(t, 0, s.Rank())
	require.Equal(t, []int64{7}, s.Int64s())

	v := Int64Vector(1, 2, 3)
	require.Equal(t, Shape{3}, v.Shape())

	f := Float64Vector(0.5)
	require.Equal(t, Float64, f.DType())

	str := StringVector("a", "b")
	require.Equal(t, []string{"a", "b"}, str.Strings())
}

func TestSlice0_SharesMemory(t *testing.T) {
	tr, err := New(Int64, Shape{4, 2})
	require.NoError(t, err)
	copy(tr.Int64s(), []int64{1, 2, 3, 4, 5, 6, 7, 8})

	head, err := tr.Slice0(2)
	require.NoError(t, err)
	require.Equal(t, Shape{2, 2}, head.Shape())
	require.Equal(t, []int64{1, 2, 3, 4}, head.Int64s())

	// The view aliases the parent's storage.
	head.Int64s()[0] = 42
	require.Equal(t, int64(42), tr.Int64s()[0])
}

func TestRow_CopiesRow(t *testing.T) {
	tr, err := FromData(Int64, Shape{2, 2}, []int64{1, 2, 3, 4})
	require.NoError(t, err)

	row, err := tr.Row(1)
	require.NoError(t, err)
	require.Equal(t, Shape{2}, row.Shape())
	require.Equal(t, []int64{3, 4}, row.Int64s())

	row.Int64s()[0] = 99
	require.Equal(t, int64(3), tr.Int64s()[2])
}

func TestParallelConcat_WritesRow(t *testing.T) {
	dst, err := New(Int64, Shape{3, 2})
	require.NoError(t, err)

	require.NoError(t, ParallelConcat(dst, 1, Int64Vector(8, 9)))
	require.Equal(t, []int64{0, 0, 8, 9, 0, 0}, dst.Int64s())
}

func TestParallelConcat_Errors(t *testing.T) {
	dst, err := New(Int64, Shape{2, 2})
	require.NoError(t, err)

	require.ErrorIs(t, ParallelConcat(dst, 0, Int64Vector(1, 2, 3)), ErrShapeMismatch)
	require.ErrorIs(t, ParallelConcat(dst, 0, Float64Vector(1)), ErrDTypeMismatch)
	require.ErrorIs(t, ParallelConcat(dst, 5, Int64Vector(1, 2)), ErrInvalidShape)
}

func TestParallelConcat_ConcurrentDistinctRows(t *testing.T) {
	const rows = 64
	dst, err := New(Int64, Shape{rows, 4})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(rows)
	for r := 0; r < rows; r++ {
		go func(r int) {
			defer wg.Done()
			v := int64(r)
			_ = ParallelConcat(dst, r, Int64Vector(v, v, v, v))
		}(r)
	}
	wg.Wait()

	for r := 0; r < rows; r++ {
		for c := 0; c < 4; c++ {
			require.Equal(t, int64(r), dst.Int64s()[r*4+c])
		}
	}
}

func TestCopyRows_Partial(t *testing.T) {
	src, err := FromData(Int64, Shape{4, 2}, []int64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	dst, err := New(Int64, Shape{2, 2})
	require.NoError(t, err)

	require.NoError(t, CopyRows(dst, src, 2))
	require.Equal(t, []int64{1, 2, 3, 4}, dst.Int64s())
}

func TestCopyRows_UnsupportedDType(t *testing.T) {
	bad := &Tensor{dtype: Invalid, shape: Shape{1, 1}, data: nil}
	dst := &Tensor{dtype: Invalid, shape: Shape{1, 1}, data: nil}
	err := CopyRows(dst, bad, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedDType))
}

func TestShape_Compatible(t *testing.T) {
	require.True(t, Shape{3, 4}.Compatible(Shape{UnknownDim, 4}))
	require.False(t, Shape{3, 4}.Compatible(Shape{UnknownDim, 5}))
	require.False(t, Shape{3}.Compatible(Shape{3, 1}))
}

func TestEqual(t *testing.T) {
	a := Int64Vector(1, 2)
	b := Int64Vector(1, 2)
	c := Int64Vector(2, 1)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(nil))
}
