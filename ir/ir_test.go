package ir_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/snippets/ir"
	"github.com/gomlx/snippets/types/shapes"
)

// Aliases
var (
	F32 = dtypes.Float32

	MS = shapes.Make
)

func TestGraphBuilding(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 4, 8, 16))
	order := g.ConstantIntVector(1, 0, 2)
	transpose := g.Transpose(x, order)
	y := g.Parameter("y", MS(F32, 8, 16, 4))
	brgemm := g.Brgemm(transpose, y)

	require.True(t, MS(F32, 8, 4, 16).Equal(transpose.Shape()))
	require.True(t, MS(F32, 8, 4, 4).Equal(brgemm.Shape()))
	require.Equal(t, ir.OpTypeBrgemm, brgemm.Type())
	require.Equal(t, []*ir.Node{transpose, y}, brgemm.Inputs())
	require.Equal(t, []*ir.Node{brgemm}, transpose.Consumers())
	require.Equal(t, "x", x.ParameterName())
	require.Len(t, g.Nodes(), 5)

	// Nodes are created after their inputs: creation order is topological.
	nodes := g.Nodes()
	for _, n := range nodes {
		for _, input := range n.Inputs() {
			require.Less(t, input.Id(), n.Id())
		}
	}
}

func TestTransposeOrder(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 4, 8, 16))
	transpose := g.Transpose(x, g.ConstantIntVector(1, 0, 2))

	order, ok := transpose.TransposeOrder()
	require.True(t, ok)
	require.Equal(t, []int{1, 0, 2}, order)

	_, ok = x.TransposeOrder()
	require.False(t, ok)

	values, ok := transpose.Input(1).ConstantIntVector()
	require.True(t, ok)
	require.Equal(t, []int{1, 0, 2}, values)
}

func TestInvalidOps(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 4, 8, 16))
	require.Panics(t, func() { g.ConstantIntVector() })
	require.Panics(t, func() { g.Transpose(x, g.ConstantIntVector(1, 0)) })
	require.Panics(t, func() { g.Transpose(x, x) }) // Order is not a constant.
	require.Panics(t, func() { g.Brgemm(x, g.Parameter("y", MS(F32, 5, 16, 4))) })

	// Nodes cannot cross graphs.
	g2 := ir.New("other")
	require.Panics(t, func() { g2.Brgemm(x, x) })
}

func TestReplaceInput(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 8, 4, 16))
	y := g.Parameter("y", MS(F32, 8, 16, 4))
	brgemm := g.Brgemm(x, y)

	z := g.Parameter("z", MS(F32, 8, 4, 16))
	g.ReplaceInput(brgemm, 0, z)
	require.Same(t, z, brgemm.Input(0))
	require.Empty(t, x.Consumers())
	require.Equal(t, []*ir.Node{brgemm}, z.Consumers())

	require.Panics(t, func() { g.ReplaceInput(brgemm, 2, z) })
}

func TestRedirectConsumersAndDetach(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 8, 4, 16))
	transpose := g.Transpose(x, g.ConstantIntVector(0, 2, 1))
	y := g.Parameter("y", MS(F32, 8, 4, 4))
	brgemm := g.Brgemm(transpose, y) // Consumes the transpose.

	// A node with consumers cannot be detached.
	require.Panics(t, func() { g.Detach(transpose) })

	g.RedirectConsumers(transpose, x)
	require.Same(t, x, brgemm.Input(0))
	require.Empty(t, transpose.Consumers())
	require.Contains(t, x.Consumers(), brgemm)

	g.Detach(transpose)
	require.True(t, transpose.IsDetached())
	require.NotContains(t, g.Nodes(), transpose)
	require.NotContains(t, x.Consumers(), transpose)

	// Detached nodes cannot be used anymore.
	require.Panics(t, func() { g.Brgemm(transpose, y) })
}

func TestValidateAndInferTypes(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 8, 4, 16))
	y := g.Parameter("y", MS(F32, 8, 16, 4))
	brgemm := g.Brgemm(x, y)
	require.True(t, MS(F32, 8, 4, 4).Equal(brgemm.Shape()))

	// Without annotations, revalidation is a no-op.
	g.ValidateAndInferTypes(brgemm)
	require.True(t, MS(F32, 8, 4, 4).Equal(brgemm.Shape()))

	// Record a layout on input 0, as if a transpose [1, 0, 2] of a [4, 8, 16]
	// value had been folded into the port: the planar shape seen by the Brgemm
	// is unchanged.
	z := g.Parameter("z", MS(F32, 4, 8, 16))
	g.ReplaceInput(brgemm, 0, z)
	desc := g.InputDescriptor(brgemm, 0)
	desc.Shape = []int{4, 8, 16}
	desc.Layout = []int{1, 0, 2}
	g.ValidateAndInferTypes(brgemm)
	require.True(t, MS(F32, 8, 4, 4).Equal(brgemm.Shape()))

	// Record a layout on the output: the node's shape is reordered accordingly.
	outDesc := g.OutputDescriptor(brgemm)
	outDesc.Layout = []int{0, 2, 1}
	g.ValidateAndInferTypes(brgemm)
	require.True(t, MS(F32, 8, 4, 4).Equal(brgemm.Shape())) // Symmetric dims here.

	rhsDesc := g.InputDescriptor(brgemm, 1)
	rhsDesc.Shape = []int{8, 16, 32}
	g.ValidateAndInferTypes(brgemm)
	require.True(t, MS(F32, 8, 32, 4).Equal(brgemm.Shape())) // [8, 4, 32] reordered by [0, 2, 1].
	require.Equal(t, []int{8, 32, 4}, outDesc.Shape)

	// A broken layout is a fatal consistency error.
	desc.Layout = []int{1, 0}
	require.Panics(t, func() { g.ValidateAndInferTypes(brgemm) })
}

func TestNodeString(t *testing.T) {
	g := ir.New("test")
	x := g.Parameter("x", MS(F32, 4, 8, 16))
	transpose := g.Transpose(x, g.ConstantIntVector(1, 0, 2))
	require.Equal(t, `#0 Parameter["x"]() -> (Float32)[4 8 16]`, x.String())
	require.Equal(t, `#2 Transpose(#0, #1) -> (Float32)[8 4 16]`, transpose.String())
}
