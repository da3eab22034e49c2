// Package ir defines the operation graph the snippets optimization passes run
// on: a directed acyclic graph of tensor operations, built with eager shape
// inference, plus the mutation primitives the rewriting passes use to splice
// nodes in and out.
//
// The package keeps a deliberately closed set of operations (see OpType): the
// passes discriminate node kinds through the OpType tag and capability queries
// like Node.TransposeOrder, never through open-ended dynamic dispatch.
//
// Error handling follows two regimes: malformed programs are reported while
// building the graph, as errors wrapped with a stack trace (github.com/pkg/errors);
// inconsistencies found on an already validated graph indicate a defect in an
// earlier pass and are fatal, raised with exceptions.Panicf.
package ir

import (
	"slices"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/snippets/lowered"
	"github.com/gomlx/snippets/types/shapes"
)

// Graph holds the operations of one tensor program and the per-port
// memory-access annotations attached to them during lowering.
//
// A Graph is mutated in place by optimization passes, one pass at a time;
// it is not safe for concurrent use.
type Graph struct {
	name  string
	nodes []*Node

	// consumers maps a node id to the nodes currently consuming its output.
	// Kept in sync by the mutation primitives.
	consumers map[NodeId][]*Node

	annotations *lowered.Annotations
}

// New creates an empty Graph with the given name.
func New(name string) *Graph {
	return &Graph{
		name:        name,
		consumers:   make(map[NodeId][]*Node),
		annotations: lowered.NewAnnotations(),
	}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Nodes returns the nodes still attached to the graph, in creation order --
// a natural topological (DAG) order, since nodes are only created after their
// inputs.
//
// It returns a fresh slice: callers may iterate over it while mutating the
// graph.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.detached {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// newNode adds a new node of the given opType and shape to the graph.
// It's used by the op constructors in ops.go.
func (g *Graph) newNode(opType OpType, shape shapes.Shape, inputs ...*Node) *Node {
	n := &Node{
		graph:  g,
		id:     NodeId(len(g.nodes)),
		opType: opType,
		shape:  shape,
		inputs: slices.Clone(inputs),
	}
	g.nodes = append(g.nodes, n)
	for _, input := range inputs {
		g.consumers[input.id] = append(g.consumers[input.id], n)
	}
	return n
}

// checkNodes panics if any of the nodes is nil, detached, or belongs to a
// different graph.
func (g *Graph) checkNodes(op string, nodes ...*Node) {
	for idx, n := range nodes {
		if n == nil {
			exceptions.Panicf("%s: input node #%d is nil!?", op, idx)
		}
		n.AssertValid()
		if n.graph != g {
			exceptions.Panicf("%s: input node #%d was created on a different graph (%q), cannot use it with graph %q",
				op, idx, n.graph.name, g.name)
		}
	}
}

// ReplaceInput rewires node's idx-th input to newInput, keeping the consumer
// bookkeeping in sync. The node's shape is not re-inferred: callers that
// change input shapes must follow up with ValidateAndInferTypes.
func (g *Graph) ReplaceInput(node *Node, idx int, newInput *Node) {
	g.checkNodes("ReplaceInput", node, newInput)
	if idx < 0 || idx >= len(node.inputs) {
		exceptions.Panicf("ReplaceInput: node %s has no input #%d", node, idx)
	}
	old := node.inputs[idx]
	if old == newInput {
		return
	}
	node.inputs[idx] = newInput
	g.removeConsumer(old, node)
	g.consumers[newInput.id] = append(g.consumers[newInput.id], node)
}

// RedirectConsumers rewires every consumer of old to consume newNode instead.
// Consumers of newNode itself are left alone, so redirecting a value into its
// own producer cannot create a cycle.
func (g *Graph) RedirectConsumers(old, newNode *Node) {
	g.checkNodes("RedirectConsumers", old, newNode)
	if old == newNode {
		return
	}
	for _, consumer := range g.consumers[old.id] {
		if consumer == newNode {
			continue
		}
		for idx, input := range consumer.inputs {
			if input == old {
				consumer.inputs[idx] = newNode
				g.consumers[newNode.id] = append(g.consumers[newNode.id], consumer)
			}
		}
	}
	remaining := g.consumers[old.id][:0]
	for _, consumer := range g.consumers[old.id] {
		if consumer == newNode {
			remaining = append(remaining, consumer)
		}
	}
	g.consumers[old.id] = remaining
}

// Detach splices the node out of the graph: it must have no remaining
// consumers (redirect them first), its port annotations are discarded and it
// stops being reported by Nodes().
func (g *Graph) Detach(node *Node) {
	g.checkNodes("Detach", node)
	if len(g.consumers[node.id]) > 0 {
		exceptions.Panicf("Detach: node %s still has %d consumers", node, len(g.consumers[node.id]))
	}
	for _, input := range node.inputs {
		g.removeConsumer(input, node)
	}
	node.inputs = nil
	node.detached = true
	delete(g.consumers, node.id)
	g.annotations.DropNode(int(node.id))
}

// removeConsumer drops one occurrence of consumer from producer's consumer list.
func (g *Graph) removeConsumer(producer, consumer *Node) {
	list := g.consumers[producer.id]
	for idx, c := range list {
		if c == consumer {
			g.consumers[producer.id] = append(list[:idx], list[idx+1:]...)
			return
		}
	}
	exceptions.Panicf("removeConsumer: node %s is not a consumer of %s", consumer, producer)
}

// Annotations returns the arena of port descriptors attached to this graph's
// ports during lowering.
func (g *Graph) Annotations() *lowered.Annotations { return g.annotations }

// InputDescriptor returns the mutable port descriptor of node's idx-th input
// port, creating a default one -- the producing node's dimensions, planar
// layout -- on first access.
func (g *Graph) InputDescriptor(node *Node, idx int) *lowered.PortDescriptor {
	node.AssertValid()
	return g.annotations.Get(node.InputPort(idx), node.Input(idx).shape.Dimensions)
}

// OutputDescriptor returns the mutable port descriptor of the node's output
// port, creating a default one on first access.
func (g *Graph) OutputDescriptor(node *Node) *lowered.PortDescriptor {
	node.AssertValid()
	return g.annotations.Get(node.OutputPort(), node.shape.Dimensions)
}
