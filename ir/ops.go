package ir

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/snippets/shapeinference"
	"github.com/gomlx/snippets/types/shapes"
)

// Parameter creates an input node for the graph, with the given name and shape.
func (g *Graph) Parameter(name string, shape shapes.Shape) *Node {
	if !shape.Ok() {
		panic(errors.Errorf("Parameter(%q): invalid shape", name))
	}
	n := g.newNode(OpTypeParameter, shape)
	n.data = &parameterNodeData{name: name}
	return n
}

// ConstantIntVector creates a Constant node holding the given integer vector,
// e.g. the axes permutation fed to Transpose. The values are read-only once
// the node is created.
func (g *Graph) ConstantIntVector(values ...int) *Node {
	if len(values) == 0 {
		panic(errors.Errorf("ConstantIntVector: an empty constant vector is not representable"))
	}
	n := g.newNode(OpTypeConstant, shapes.Make(dtypes.Int64, len(values)))
	data := &constantNodeData{values: make([]int, len(values))}
	copy(data.values, values)
	n.data = data
	return n
}

// Transpose creates a node permuting the axes of x according to order, a
// Constant created with ConstantIntVector holding one entry per axis of x:
// output axis i takes data from input axis order[i].
func (g *Graph) Transpose(x, order *Node) *Node {
	g.checkNodes("Transpose", x, order)
	permutation, ok := order.ConstantIntVector()
	if !ok {
		panic(errors.Errorf("Transpose: order must be a Constant integer vector, got %s", order))
	}
	shape, err := shapeinference.TransposeOp(x.Shape(), permutation)
	if err != nil {
		panic(errors.WithMessagef(err, "while building Transpose(%s, %v)", x, permutation))
	}
	return g.newNode(OpTypeTranspose, shape, x, order)
}

// Brgemm creates a batched matrix multiplication node of lhs by rhs: both
// [batch..., M, K] x [batch..., K, N] -> [batch..., M, N].
//
// Its operands' memory layout is explicit metadata on the node's ports (see
// Graph.InputDescriptor and Graph.OutputDescriptor) rather than implicit in
// the data: optimization passes may record a non-default layout there, and
// ValidateAndInferTypes takes it into account.
func (g *Graph) Brgemm(lhs, rhs *Node) *Node {
	g.checkNodes("Brgemm", lhs, rhs)
	shape, err := shapeinference.BrgemmOp(lhs.Shape(), rhs.Shape())
	if err != nil {
		panic(errors.WithMessagef(err, "while building Brgemm(%s, %s)", lhs, rhs))
	}
	return g.newNode(OpTypeBrgemm, shape, lhs, rhs)
}
