// Package pattern implements the structural pattern matching and graph
// rewriting primitives used by the optimization passes.
//
// A Pattern is a declarative description of a subgraph shape, built from
// WrapType (an operation kind, optionally with sub-patterns for its inputs and
// extra predicates), AnyInput (matches any value) and Or (first alternative
// wins). A MatcherPass pairs a pattern with a rewrite callback; the Rewriter
// scans a graph, invokes the callback on each match and, because callbacks
// mutate the graph in place, restarts the scan after every reported mutation
// until a full scan finds nothing -- the fixed point.
package pattern

import "github.com/gomlx/snippets/ir"

// Pattern describes a structural shape of the operation graph, matched rooted
// at a candidate node. Build patterns with WrapType, AnyInput and Or.
type Pattern interface {
	// matches reports whether the subgraph rooted at n has this shape.
	matches(n *ir.Node) bool
}

// Predicate is an extra condition a matched node must satisfy, e.g. the
// eligibility of a transpose's permutation.
type Predicate func(n *ir.Node) bool

// nodePattern matches a node by operation kind, optionally constraining its
// inputs and applying extra predicates.
type nodePattern struct {
	opType     ir.OpType
	inputs     []Pattern // nil leaves the inputs unconstrained.
	predicates []Predicate
}

// WrapType returns a pattern matching nodes of the given operation kind.
//
// If inputs is non-nil, the node must have exactly len(inputs) inputs and each
// must match the corresponding sub-pattern. All predicates must hold.
func WrapType(opType ir.OpType, inputs []Pattern, predicates ...Predicate) Pattern {
	return &nodePattern{opType: opType, inputs: inputs, predicates: predicates}
}

func (p *nodePattern) matches(n *ir.Node) bool {
	if n == nil || n.IsDetached() || n.Type() != p.opType {
		return false
	}
	for _, predicate := range p.predicates {
		if !predicate(n) {
			return false
		}
	}
	if p.inputs == nil {
		return true
	}
	if n.NumInputs() != len(p.inputs) {
		return false
	}
	for idx, sub := range p.inputs {
		if !sub.matches(n.Input(idx)) {
			return false
		}
	}
	return true
}

// anyInput matches any attached node.
type anyInput struct{}

// AnyInput returns a pattern matching any value, used for unconstrained
// operands.
func AnyInput() Pattern { return anyInput{} }

func (anyInput) matches(n *ir.Node) bool {
	return n != nil && !n.IsDetached()
}

// orPattern matches if any of its alternatives does.
type orPattern struct {
	alternatives []Pattern
}

// Or returns a pattern matching if any of the given alternatives matches; the
// alternatives are tried in order.
func Or(alternatives ...Pattern) Pattern {
	return &orPattern{alternatives: alternatives}
}

func (p *orPattern) matches(n *ir.Node) bool {
	for _, alternative := range p.alternatives {
		if alternative.matches(n) {
			return true
		}
	}
	return false
}

// Match is handed to a rewrite callback: the node the pattern matched at.
type Match struct {
	// Root is the matched root node. For an Or pattern it is the node the
	// winning alternative matched at.
	Root *ir.Node
}

// Callback rewrites the graph around a match. It returns whether the graph was
// mutated: the Rewriter then restarts its scan from a clean state.
type Callback func(m *Match) bool
