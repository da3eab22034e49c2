// Package shapeinference calculates the shape resulting from operations and validates their inputs.
//
// It is used when building the operation graph, and again when a graph rewriting
// pass needs to re-infer the output of a node whose inputs it changed.
//
// Errors returned here are recoverable validation errors: a malformed program
// handed to the graph builder. Passes that hit them on an already validated
// graph treat them as fatal, see ir.Graph.ValidateAndInferTypes.
package shapeinference

import (
	"github.com/pkg/errors"

	"github.com/gomlx/snippets/types"
	"github.com/gomlx/snippets/types/shapes"
)

// TransposeOp returns the shape resulting from permuting all axes of the operand.
// There must be one value in permutation for each axis in the operand.
// The output will have output.Dimensions[i] = operand.Dimensions[permutation[i]].
func TransposeOp(operand shapes.Shape, permutation []int) (output shapes.Shape, err error) {
	rank := operand.Rank()
	if len(permutation) != rank {
		err = errors.Errorf("Transpose() requires all axes permutations to be defined, operand has shape %s, but %d permutations were given",
			operand, len(permutation))
		return
	}
	if rank == 0 {
		return operand, nil
	}

	// Check permutation axes are within range and unique.
	seen := types.MakeSet[int](rank)
	for _, srcAxis := range permutation {
		if srcAxis < 0 || srcAxis >= rank {
			err = errors.Errorf("invalid permutation axis %d given to Transpose(%s), it must be within the range of its rank",
				srcAxis, operand)
			return
		}
		if seen.Has(srcAxis) {
			err = errors.Errorf("invalid permutations given to Transpose(%s, %v), there cannot be any repeated axis, each must appear exactly once",
				operand, permutation)
			return
		}
		seen.Insert(srcAxis)
	}

	output = operand.Clone()
	for axis := range output.Dimensions {
		srcAxis := permutation[axis]
		output.Dimensions[axis] = operand.Dimensions[srcAxis]
	}
	return
}

// BrgemmOp returns the shape of a batched matrix multiplication of lhs by rhs.
//
// Both operands must have the same DType and the same rank >= 2. The last two
// axes are the matrix axes -- lhs is [batch..., M, K] and rhs is [batch..., K, N] --
// and all leading batch dimensions must match exactly. The output is
// [batch..., M, N].
func BrgemmOp(lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if lhs.DType != rhs.DType {
		err = errors.Errorf("Brgemm lhs (left-hand-side) and rhs operands don't match data types: %s and %s",
			lhs.DType, rhs.DType)
		return
	}
	if lhs.Rank() < 2 || rhs.Rank() < 2 {
		err = errors.Errorf("Brgemm operands must have rank >= 2, got lhs=%s and rhs=%s", lhs, rhs)
		return
	}
	if lhs.Rank() != rhs.Rank() {
		err = errors.Errorf("Brgemm operands must have the same rank, got lhs=%s and rhs=%s", lhs, rhs)
		return
	}
	rank := lhs.Rank()
	for axis := 0; axis < rank-2; axis++ {
		if lhs.Dimensions[axis] != rhs.Dimensions[axis] {
			err = errors.Errorf("Brgemm batch dimensions don't match: lhs[%d]=%d != rhs[%d]=%d (lhs=%s, rhs=%s)",
				axis, lhs.Dimensions[axis], axis, rhs.Dimensions[axis], lhs, rhs)
			return
		}
	}
	contractingDim := lhs.Dimensions[rank-1]
	if contractingDim != rhs.Dimensions[rank-2] {
		err = errors.Errorf("Brgemm contracting dimensions don't match: lhs[%d]=%d != rhs[%d]=%d (lhs=%s, rhs=%s)",
			rank-1, contractingDim, rank-2, rhs.Dimensions[rank-2], lhs, rhs)
		return
	}

	dims := make([]int, rank)
	copy(dims, lhs.Dimensions[:rank-2])
	dims[rank-2] = lhs.Dimensions[rank-2]
	dims[rank-1] = rhs.Dimensions[rank-1]
	output = shapes.Make(lhs.DType, dims...)
	return
}
