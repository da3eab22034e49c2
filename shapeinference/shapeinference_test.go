package shapeinference

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/snippets/types/shapes"
)

// Aliases
var (
	F32 = dtypes.Float32
	I64 = dtypes.Int64

	MS = shapes.Make
)

// must1 panics if there is an error.
func must1[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestTransposeOp(t *testing.T) {
	operand := MS(F32, 8, 4, 16)
	require.True(t, MS(F32, 4, 8, 16).Equal(must1(TransposeOp(operand, []int{1, 0, 2}))))
	require.True(t, MS(F32, 8, 16, 4).Equal(must1(TransposeOp(operand, []int{0, 2, 1}))))

	// Identity permutation.
	require.True(t, operand.Equal(must1(TransposeOp(operand, []int{0, 1, 2}))))

	// Scalars have nothing to permute.
	scalar := MS(F32)
	require.True(t, scalar.Equal(must1(TransposeOp(scalar, nil))))

	// Wrong number of permutations.
	var err error
	_, err = TransposeOp(operand, []int{1, 0})
	require.Error(t, err)

	// Out-of-range axis.
	_, err = TransposeOp(operand, []int{1, 0, 3})
	require.Error(t, err)
	_, err = TransposeOp(operand, []int{1, 0, -1})
	require.Error(t, err)

	// Repeated axis.
	_, err = TransposeOp(operand, []int{1, 1, 2})
	require.Error(t, err)
}

func TestBrgemmOp(t *testing.T) {
	lhs := MS(F32, 8, 4, 16)
	rhs := MS(F32, 8, 16, 32)
	require.True(t, MS(F32, 8, 4, 32).Equal(must1(BrgemmOp(lhs, rhs))))

	// Plain (non-batched) matmul.
	require.True(t, MS(F32, 4, 32).Equal(must1(BrgemmOp(MS(F32, 4, 16), MS(F32, 16, 32)))))

	// Multiple batch dimensions.
	require.True(t, MS(F32, 2, 12, 128, 64).Equal(
		must1(BrgemmOp(MS(F32, 2, 12, 128, 128), MS(F32, 2, 12, 128, 64)))))

	// Mismatched data types.
	var err error
	_, err = BrgemmOp(lhs, MS(I64, 8, 16, 32))
	require.Error(t, err)

	// Rank too small.
	_, err = BrgemmOp(MS(F32, 4), MS(F32, 4, 8))
	require.Error(t, err)

	// Mismatched ranks.
	_, err = BrgemmOp(lhs, MS(F32, 16, 32))
	require.Error(t, err)

	// Mismatched batch dimension.
	_, err = BrgemmOp(lhs, MS(F32, 7, 16, 32))
	require.Error(t, err)

	// Mismatched contracting dimension.
	_, err = BrgemmOp(lhs, MS(F32, 8, 17, 32))
	require.Error(t, err)
}
