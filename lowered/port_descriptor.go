// Package lowered holds the memory-access metadata attached to the ports of the
// operation graph during lowering.
//
// A PortDescriptor records, for one input or output port of a node, the
// physical shape of the value as stored in memory and the layout: a permutation
// mapping logical axes to physical storage order. An empty layout means the
// default (planar) layout, where logical and physical order coincide.
//
// Descriptors live in an Annotations arena keyed by stable port identity, not
// inside the nodes themselves: passes hold keys, never ownership, so later
// structural graph changes don't invalidate the metadata of untouched ports.
package lowered

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// PortKind discriminates input from output ports in a PortKey.
type PortKind int

const (
	PortInput PortKind = iota
	PortOutput
)

// String implements fmt.Stringer.
func (k PortKind) String() string {
	switch k {
	case PortInput:
		return "in"
	case PortOutput:
		return "out"
	}
	return fmt.Sprintf("PortKind(%d)", int(k))
}

// PortKey is the stable identity of one port of one node: the node id within
// its graph, the port direction and the port index.
type PortKey struct {
	Node  int
	Kind  PortKind
	Index int
}

// String implements fmt.Stringer. E.g.: "#3.in[0]".
func (k PortKey) String() string {
	return fmt.Sprintf("#%d.%s[%d]", k.Node, k.Kind, k.Index)
}

// PortDescriptor is the per-port metadata record: the physical shape of the
// value and its layout.
//
// Both fields are mutated in place by optimization passes; mutations are
// visible to all future readers of the same port.
type PortDescriptor struct {
	// Shape are the dimension sizes of the value, in physical storage order.
	Shape []int

	// Layout is either empty (default/planar layout) or a permutation of
	// [0, len(Shape)) mapping logical axes onto physical storage order.
	Layout []int
}

// IsPlanar returns whether the descriptor records no layout, meaning logical
// and physical axis order coincide.
func (d *PortDescriptor) IsPlanar() bool { return len(d.Layout) == 0 }

// AssertValid panics if the descriptor's layout is non-empty and is not a valid
// permutation of the same rank as its shape. A broken descriptor means a defect
// in the pass that last touched it, never a user error.
func (d *PortDescriptor) AssertValid() {
	if d.IsPlanar() {
		return
	}
	if len(d.Layout) != len(d.Shape) {
		exceptions.Panicf("port descriptor layout %v doesn't match the rank of its shape %v", d.Layout, d.Shape)
	}
	if !isPermutation(d.Layout) {
		exceptions.Panicf("port descriptor layout %v is not a valid permutation of [0, %d)", d.Layout, len(d.Layout))
	}
}

// String implements fmt.Stringer.
func (d *PortDescriptor) String() string {
	if d.IsPlanar() {
		return fmt.Sprintf("{shape=%v, planar}", d.Shape)
	}
	return fmt.Sprintf("{shape=%v, layout=%v}", d.Shape, d.Layout)
}

// isPermutation returns whether p holds each value of [0, len(p)) exactly once.
func isPermutation(p []int) bool {
	seen := make([]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= len(p) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Annotations is an arena of port descriptors, keyed by PortKey.
//
// Descriptors are created lazily on first access and updated in place: Get
// returns a mutable reference, there is no separate "set" call.
type Annotations struct {
	descriptors map[PortKey]*PortDescriptor
}

// NewAnnotations creates an empty Annotations arena.
func NewAnnotations() *Annotations {
	return &Annotations{descriptors: make(map[PortKey]*PortDescriptor)}
}

// Get returns the descriptor for the given port, creating a default one -- the
// given dimensions with a planar layout -- on first access.
//
// The returned pointer has mutable reference semantics: changes are seen by
// every later Get or Lookup of the same key.
func (a *Annotations) Get(key PortKey, defaultDims []int) *PortDescriptor {
	if d, found := a.descriptors[key]; found {
		return d
	}
	d := &PortDescriptor{Shape: slices.Clone(defaultDims)}
	a.descriptors[key] = d
	return d
}

// Lookup returns the descriptor for the given port, if one was ever created.
func (a *Annotations) Lookup(key PortKey) (*PortDescriptor, bool) {
	d, found := a.descriptors[key]
	return d, found
}

// DropNode discards all descriptors attached to ports of the given node.
// Called when a node is detached from the graph.
func (a *Annotations) DropNode(node int) {
	for key := range a.descriptors {
		if key.Node == node {
			delete(a.descriptors, key)
		}
	}
}
