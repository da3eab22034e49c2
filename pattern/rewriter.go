package pattern

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/gomlx/snippets/ir"
)

// MatcherPass pairs a pattern with the callback that rewrites the graph around
// each of its matches. Create one with NewMatcherPass and run it through a
// Rewriter.
type MatcherPass struct {
	name     string
	pattern  Pattern
	callback Callback
}

// NewMatcherPass registers the pattern and callback under a name used for
// logging.
func NewMatcherPass(name string, pattern Pattern, callback Callback) *MatcherPass {
	return &MatcherPass{name: name, pattern: pattern, callback: callback}
}

// Name of the pass.
func (p *MatcherPass) Name() string { return p.name }

// matchAt invokes the callback if the pattern matches rooted at n, and returns
// whether the callback mutated the graph.
func (p *MatcherPass) matchAt(n *ir.Node) bool {
	if !p.pattern.matches(n) {
		return false
	}
	klog.V(2).Infof("pattern %s: matched at %s", p.name, n)
	return p.callback(&Match{Root: n})
}

// Rewriter runs a set of matcher passes over a graph until none of them finds
// anything left to rewrite.
type Rewriter struct {
	passes []*MatcherPass
}

// NewRewriter creates an empty Rewriter.
func NewRewriter() *Rewriter { return &Rewriter{} }

// Register adds a pass to the rewriter. Passes are tried in registration order
// at each candidate node.
func (r *Rewriter) Register(passes ...*MatcherPass) *Rewriter {
	r.passes = append(r.passes, passes...)
	return r
}

// Run scans the graph to a fixed point, restarting the scan after every
// mutation so that rewritten regions are never revisited through stale
// structure. It returns the number of rewrites applied.
//
// Each callback reporting a mutation must make progress (the passes here
// remove a node per rewrite); Run panics if the number of scans exceeds the
// graph size, which would mean a callback lied about mutating.
func (r *Rewriter) Run(g *ir.Graph) int {
	rewrites := 0
	maxScans := len(g.Nodes()) + 1
	for scan := 0; ; scan++ {
		if scan > maxScans {
			exceptions.Panicf("pattern.Rewriter: no fixed point after %d scans of graph %q, a callback is reporting mutations without making progress",
				scan, g.Name())
		}
		mutated := false
		for _, n := range g.Nodes() {
			for _, pass := range r.passes {
				if pass.matchAt(n) {
					klog.V(1).Infof("pattern %s: rewrote graph %q at node #%d", pass.Name(), g.Name(), n.Id())
					rewrites++
					mutated = true
					break
				}
			}
			if mutated {
				break
			}
		}
		if !mutated {
			return rewrites
		}
	}
}
