// Package passes contains the graph rewriting optimizations run on the
// operation graph before code generation.
package passes

import (
	"slices"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/gomlx/snippets/ir"
	"github.com/gomlx/snippets/pattern"
)

// FuseTransposeBrgemm returns the pass that eliminates Transpose nodes
// adjacent to a Brgemm by folding their permutation into the memory-access
// layout recorded on the Brgemm's ports, instead of materializing a physically
// transposed tensor.
//
// Three placements are fused: a transpose producing the Brgemm's first input,
// one producing its second input, and one consuming the Brgemm's output. Only
// transposes whose constant permutation leaves the last (contiguous) axis in
// place are eligible, see isSupportedTransposeOrder: Brgemm's access pattern
// assumes the last logical axis maps to contiguous memory, so any other
// permutation would require an actual data reshuffle.
func FuseTransposeBrgemm() *pattern.MatcherPass {
	constant := pattern.WrapType(ir.OpTypeConstant, nil)
	transpose := pattern.WrapType(ir.OpTypeTranspose,
		[]pattern.Pattern{pattern.AnyInput(), constant}, isSupportedTranspose)

	// Pattern 0: Transpose on the 0-th input of the Brgemm.
	brgemmIn0 := pattern.WrapType(ir.OpTypeBrgemm,
		[]pattern.Pattern{transpose, pattern.AnyInput()})

	// Pattern 1: Transpose on the 1-st input of the Brgemm.
	brgemmIn1 := pattern.WrapType(ir.OpTypeBrgemm,
		[]pattern.Pattern{pattern.AnyInput(), transpose})

	// Pattern 2: Transpose on the output of the Brgemm.
	brgemm := pattern.WrapType(ir.OpTypeBrgemm,
		[]pattern.Pattern{pattern.AnyInput(), pattern.AnyInput()})
	transposeOut := pattern.WrapType(ir.OpTypeTranspose,
		[]pattern.Pattern{brgemm, constant}, isSupportedTranspose)

	return pattern.NewMatcherPass("FuseTransposeBrgemm",
		pattern.Or(brgemmIn0, brgemmIn1, transposeOut),
		fuseTransposeBrgemmCallback)
}

// isSupportedTransposeOrder returns whether the permutation can be absorbed
// into a port layout: it must be non-empty and leave the last axis in place.
func isSupportedTransposeOrder(order []int) bool {
	size := len(order)
	return size > 0 && order[size-1] == size-1
}

// isSupportedTranspose returns whether the value is produced by a Transpose
// with a compile-time constant permutation that passes
// isSupportedTransposeOrder.
func isSupportedTranspose(n *ir.Node) bool {
	order, ok := n.TransposeOrder()
	return ok && isSupportedTransposeOrder(order)
}

// fuseLayouts composes two layout permutations into the single equivalent one:
// fused[i] = a[b[i]]. An empty operand means "default/untouched layout" and
// yields the other operand unchanged.
//
// Mismatched ranks or out-of-range values mean a malformed transpose attribute
// or a defect in an earlier pass, and are fatal: a silently truncated layout
// would corrupt all downstream code generation.
func fuseLayouts(a, b []int) []int {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	if len(b) == 0 {
		return slices.Clone(a)
	}
	if len(a) != len(b) {
		exceptions.Panicf("fused layouts must have equal ranks, got %v and %v", a, b)
	}
	fused := make([]int, len(a))
	for i, idx := range b {
		if idx < 0 || idx >= len(a) {
			exceptions.Panicf("fused layouts values mustn't exceed the layout size, got %v and %v", a, b)
		}
		fused[i] = a[idx]
	}
	return fused
}

// transposeOrder returns the constant permutation of a transpose the pattern
// already vetted; by then a missing constant is a matcher defect.
func transposeOrder(transpose *ir.Node) []int {
	order, ok := transpose.TransposeOrder()
	if !ok {
		exceptions.Panicf("FuseTransposeBrgemm: matched transpose %s has no constant order", transpose)
	}
	return order
}

// fuseTransposeBrgemmCallback rewrites one match. The matched root is either
// the Brgemm itself (transpose on an input) or a Transpose (transpose on the
// Brgemm's output, the Brgemm being its first input's producer). Output fusion
// runs first when applicable; the input loop then always runs, so a Brgemm
// with transposes on both inputs and on the output is fully fused in one
// invocation.
func fuseTransposeBrgemmCallback(m *pattern.Match) bool {
	brgemm := m.Root
	g := brgemm.Graph()

	// Transpose on the Brgemm's output.
	if brgemm.Type() == ir.OpTypeTranspose {
		transpose := m.Root
		brgemm = transpose.Input(0)
		order := transposeOrder(transpose)
		desc := g.OutputDescriptor(brgemm)
		// Downstream consumers now expect the transposed shape directly
		// from the Brgemm.
		desc.Shape = slices.Clone(transpose.Shape().Dimensions)
		desc.Layout = fuseLayouts(desc.Layout, order)
		g.RedirectConsumers(transpose, brgemm)
		g.Detach(transpose)
		klog.V(1).Infof("FuseTransposeBrgemm: folded output transpose %v into %s", order, brgemm)
	}

	for i := 0; i < brgemm.NumInputs(); i++ {
		input := brgemm.Input(i)
		if !isSupportedTranspose(input) {
			continue
		}
		transpose := input
		order := transposeOrder(transpose)
		g.ReplaceInput(brgemm, i, transpose.Input(0))
		desc := g.InputDescriptor(brgemm, i)
		// For inputs the transpose's permutation sits closer to the data
		// than any previously recorded layout: note the operand order is
		// swapped relative to the output case.
		desc.Shape = slices.Clone(transpose.Input(0).Shape().Dimensions)
		desc.Layout = fuseLayouts(order, desc.Layout)
		if len(transpose.Consumers()) == 0 {
			g.Detach(transpose)
		}
		klog.V(1).Infof("FuseTransposeBrgemm: folded input #%d transpose %v into %s", i, order, brgemm)
	}

	// Input shapes and/or the output layout changed under the node: re-infer.
	g.ValidateAndInferTypes(brgemm)
	return true
}
