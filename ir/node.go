package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/snippets/lowered"
	"github.com/gomlx/snippets/types/shapes"
)

// NodeId is a unique node id within a Graph.
type NodeId int

// InvalidNodeId indicates a node that failed to be created.
const InvalidNodeId = NodeId(-1)

// Node is a vertex of the operation graph: an operation with a fixed ordered
// list of input nodes and one output value, whose shape is inferred when the
// node is created.
//
// Nodes are created through the Graph op constructors (Graph.Parameter,
// Graph.Transpose, Graph.Brgemm, ...) and owned by their Graph.
type Node struct {
	graph  *Graph
	id     NodeId
	opType OpType
	shape  shapes.Shape

	// inputs are the edges of the operation graph.
	inputs []*Node

	// detached is set once the node is spliced out of the graph by a
	// rewriting pass. A detached node has no inputs and no consumers.
	detached bool

	// data holds op-specific attributes, e.g. constantNodeData.
	data any
}

// parameterNodeData is the static data of a Parameter node.
type parameterNodeData struct {
	name string
}

// constantNodeData is the static data of a Constant node. Only integer vector
// constants are representable: they are what the rewriting passes consume
// (axes permutations). Values are read-only once the node is created.
type constantNodeData struct {
	values []int
}

// Graph that holds this Node.
func (n *Node) Graph() *Graph {
	if n == nil {
		return nil
	}
	return n.graph
}

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId {
	return n.id
}

// Type identifies the operation performed by the node.
func (n *Node) Type() OpType {
	if n == nil {
		return OpTypeInvalid
	}
	return n.opType
}

// Shape of the Node's output.
func (n *Node) Shape() shapes.Shape {
	if n == nil {
		return shapes.Shape{}
	}
	return n.shape
}

// Rank returns the rank of the node's shape.
func (n *Node) Rank() int {
	return n.shape.Rank()
}

// Inputs are the nodes that are direct inputs to the node.
func (n *Node) Inputs() []*Node { return n.inputs }

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the idx-th input node.
// It panics if idx is out of range.
func (n *Node) Input(idx int) *Node {
	if idx < 0 || idx >= len(n.inputs) {
		exceptions.Panicf("node %s has no input #%d", n, idx)
	}
	return n.inputs[idx]
}

// Consumers returns the nodes currently consuming this node's output.
// The returned slice must not be mutated.
func (n *Node) Consumers() []*Node {
	return n.graph.consumers[n.id]
}

// IsDetached returns whether the node was spliced out of the graph by a
// rewriting pass.
func (n *Node) IsDetached() bool { return n.detached }

// ParameterName returns the parameter name.
// If node is not a parameter, it panics.
func (n *Node) ParameterName() string {
	n.AssertValid()
	if n.opType != OpTypeParameter {
		exceptions.Panicf("trying to get ParameterName of a non-parameter node %s", n)
	}
	return n.data.(*parameterNodeData).name
}

// ConstantIntVector returns the constant integer vector held by the node, or
// ok == false if the node is not a Constant.
//
// The returned slice aliases the node's attribute and must not be mutated.
func (n *Node) ConstantIntVector() (values []int, ok bool) {
	if n == nil || n.opType != OpTypeConstant {
		return nil, false
	}
	return n.data.(*constantNodeData).values, true
}

// TransposeOrder is the capability query used by the layout fusion passes: it
// returns the axes permutation if n is a Transpose whose order input is a
// compile-time Constant, and ok == false otherwise.
//
// The returned slice aliases the constant's attribute and must not be mutated.
func (n *Node) TransposeOrder() (order []int, ok bool) {
	if n == nil || n.opType != OpTypeTranspose {
		return nil, false
	}
	return n.inputs[1].ConstantIntVector()
}

// InputPort returns the stable identity of the node's idx-th input port, used
// to key port descriptors in the lowered.Annotations arena.
func (n *Node) InputPort(idx int) lowered.PortKey {
	return lowered.PortKey{Node: int(n.id), Kind: lowered.PortInput, Index: idx}
}

// OutputPort returns the stable identity of the node's single output port.
func (n *Node) OutputPort() lowered.PortKey {
	return lowered.PortKey{Node: int(n.id), Kind: lowered.PortOutput}
}

// AssertValid panics if n is nil or if it was detached from its graph.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("Node is nil")
	}
	if n.detached {
		exceptions.Panicf("node #%d (%s) was detached from its graph", n.id, n.opType)
	}
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var extra string
	switch n.opType {
	case OpTypeParameter:
		extra = fmt.Sprintf("[%q]", n.data.(*parameterNodeData).name)
	case OpTypeConstant:
		extra = fmt.Sprintf("%v", n.data.(*constantNodeData).values)
	}
	inputIds := make([]string, len(n.inputs))
	for ii, input := range n.inputs {
		inputIds[ii] = fmt.Sprintf("#%d", input.id)
	}
	return fmt.Sprintf("#%d %s%s(%s) -> %s", n.id, n.opType, extra, strings.Join(inputIds, ", "), n.shape)
}
