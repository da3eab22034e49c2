package ir

import (
	"slices"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/snippets/shapeinference"
	"github.com/gomlx/snippets/types/shapes"
)

// ValidateAndInferTypes recomputes the node's output shape from its current
// inputs and port annotations, storing the result on the node and on its
// output descriptor (when one exists).
//
// Rewriting passes must call it after editing a node's inputs or port layouts
// directly, since those edits bypass the shape propagation done by the op
// constructors. Any inconsistency found here means a defect in the pass that
// produced the graph and is fatal: a silently wrong shape or layout would
// corrupt downstream code generation with no observable symptom until
// execution.
func (g *Graph) ValidateAndInferTypes(node *Node) {
	g.checkNodes("ValidateAndInferTypes", node)
	switch node.opType {
	case OpTypeParameter, OpTypeConstant:
		// Their shapes are static.
	case OpTypeTranspose:
		order, ok := node.TransposeOrder()
		if !ok {
			exceptions.Panicf("ValidateAndInferTypes: Transpose %s order is not a constant integer vector", node)
		}
		shape, err := shapeinference.TransposeOp(node.Input(0).Shape(), order)
		if err != nil {
			exceptions.Panicf("ValidateAndInferTypes(%s): %+v", node, err)
		}
		node.shape = shape
	case OpTypeBrgemm:
		g.revalidateBrgemm(node)
	default:
		exceptions.Panicf("ValidateAndInferTypes: unsupported node %s", node)
	}
}

// revalidateBrgemm re-infers a Brgemm's output shape taking the port
// annotations into account: each input is first brought to its planar
// (logical) shape by applying the recorded layout, the batched matmul shape is
// inferred from those, and a layout recorded on the output port reorders the
// inferred logical output back into the shape consumers observe.
func (g *Graph) revalidateBrgemm(node *Node) {
	lhs := g.planarInputShape(node, 0)
	rhs := g.planarInputShape(node, 1)
	logical, err := shapeinference.BrgemmOp(lhs, rhs)
	if err != nil {
		exceptions.Panicf("ValidateAndInferTypes(%s): %+v", node, err)
	}

	desc, found := g.annotations.Lookup(node.OutputPort())
	if !found || desc.IsPlanar() {
		node.shape = logical
		if found {
			desc.Shape = slices.Clone(logical.Dimensions)
		}
		return
	}
	desc.AssertValid()
	if len(desc.Layout) != logical.Rank() {
		exceptions.Panicf("ValidateAndInferTypes(%s): output layout %v doesn't match the inferred output %s",
			node, desc.Layout, logical)
	}
	dims := make([]int, logical.Rank())
	for i, axis := range desc.Layout {
		dims[i] = logical.Dimensions[axis]
	}
	node.shape = shapes.Make(logical.DType, dims...)
	desc.Shape = slices.Clone(dims)
}

// planarInputShape returns the logical shape of node's idx-th input: the
// physical dimensions recorded on the input port descriptor, reordered by the
// port's layout. Without a descriptor (or with a planar one) it is simply the
// recorded -- or the producing node's -- dimensions.
func (g *Graph) planarInputShape(node *Node, idx int) shapes.Shape {
	input := node.Input(idx)
	desc, found := g.annotations.Lookup(node.InputPort(idx))
	if !found {
		return input.Shape()
	}
	desc.AssertValid()
	if desc.IsPlanar() {
		return shapes.Make(input.Shape().DType, desc.Shape...)
	}
	dims := make([]int, len(desc.Shape))
	for i, axis := range desc.Layout {
		dims[i] = desc.Shape[axis]
	}
	return shapes.Make(input.Shape().DType, dims...)
}
