package ir

import "fmt"

// OpType is a closed enum of the operation kinds represented in the graph.
//
// The rewriting passes discriminate node kinds through this tag (and the
// capability queries on Node, like Node.TransposeOrder) rather than through
// open-ended dynamic dispatch.
type OpType int

const (
	OpTypeInvalid OpType = iota

	// OpTypeParameter is a graph input.
	OpTypeParameter

	// OpTypeConstant holds a compile-time constant value, e.g. the axes
	// permutation of a Transpose.
	OpTypeConstant

	// OpTypeTranspose permutes the axes of its data input according to its
	// second input, a constant permutation.
	OpTypeTranspose

	// OpTypeBrgemm is a batched matrix multiplication whose operand memory
	// layout is explicit metadata on its ports, see package lowered.
	OpTypeBrgemm
)

// String implements fmt.Stringer.
func (t OpType) String() string {
	switch t {
	case OpTypeInvalid:
		return "Invalid"
	case OpTypeParameter:
		return "Parameter"
	case OpTypeConstant:
		return "Constant"
	case OpTypeTranspose:
		return "Transpose"
	case OpTypeBrgemm:
		return "Brgemm"
	}
	return fmt.Sprintf("OpType(%d)", int(t))
}
