// snippets_dump builds a demonstration attention-style graph, runs the
// Transpose-into-Brgemm layout fusion pass over it and prints the graph before
// and after, including the memory-access layouts recorded on the Brgemm ports.
//
// Useful to eyeball what the pass does:
//
//	go run ./cmd/snippets_dump -v=1
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/snippets/ir"
	"github.com/gomlx/snippets/passes"
	"github.com/gomlx/snippets/pattern"
	"github.com/gomlx/snippets/types/shapes"
)

var flagOutput = flag.String("o", "", "Write the report to the given file instead of stdout.")

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'snippets_dump -help'.", flag.Args())
		os.Exit(1)
	}

	out := io.Writer(os.Stdout)
	if *flagOutput != "" {
		f := must.M1(os.Create(*flagOutput))
		defer func() { must.M(f.Close()) }()
		out = f
	}

	g := buildAttentionGraph()
	report(out, "Before FuseTransposeBrgemm", g)

	rewriter := pattern.NewRewriter().Register(passes.FuseTransposeBrgemm())
	rewrites := rewriter.Run(g)
	fmt.Fprintf(out, "\n%d rewrite(s) applied.\n\n", rewrites)

	report(out, "After FuseTransposeBrgemm", g)
}

// buildAttentionGraph assembles the core of a scaled-dot-product attention
// block, the motivating shape for this pass: both matmuls have a transposed
// operand and the result is transposed back to [batch, seq, heads, depth].
// All three transposes keep the last axis in place, so all three are fusible.
func buildAttentionGraph() *ir.Graph {
	g := ir.New("attention")
	const (
		batch = 1
		seq   = 128
		heads = 12
		depth = 64
	)
	toHeadsFirst := g.ConstantIntVector(0, 2, 1, 3) // [b, s, h, d] -> [b, h, s, d]

	query := g.Parameter("query", shapes.Make(dtypes.Float32, batch, seq, heads, depth))
	keyT := g.Parameter("key_t", shapes.Make(dtypes.Float32, batch, heads, depth, seq))
	value := g.Parameter("value", shapes.Make(dtypes.Float32, batch, seq, heads, depth))

	scores := g.Brgemm(g.Transpose(query, toHeadsFirst), keyT)
	context := g.Brgemm(scores, g.Transpose(value, toHeadsFirst))
	g.Transpose(context, g.ConstantIntVector(0, 2, 1, 3))
	return g
}

func report(out io.Writer, title string, g *ir.Graph) {
	fmt.Fprintln(out, titleStyle.Render(title))
	table := newPlainTable(true)
	table.Headers("Node", "Shape", "Bytes", "Port layouts")
	for _, n := range g.Nodes() {
		table.Row(n.String(), n.Shape().String(),
			humanize.Bytes(uint64(n.Shape().Memory())), portLayouts(g, n))
	}
	fmt.Fprintln(out, table.Render())
}

// portLayouts summarizes the non-default port descriptors of a node.
func portLayouts(g *ir.Graph, n *ir.Node) string {
	var parts []string
	for idx := 0; idx < n.NumInputs(); idx++ {
		if desc, found := g.Annotations().Lookup(n.InputPort(idx)); found && !desc.IsPlanar() {
			parts = append(parts, fmt.Sprintf("in[%d]=%s", idx, desc))
		}
	}
	if desc, found := g.Annotations().Lookup(n.OutputPort()); found && !desc.IsPlanar() {
		parts = append(parts, fmt.Sprintf("out=%s", desc))
	}
	if len(parts) == 0 {
		return "-"
	}
	result := parts[0]
	for _, part := range parts[1:] {
		result += " " + part
	}
	return result
}
