// Package depgraph renders the resolved dependency graph for
// inspection, as Graphviz DOT or as SVG.
package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/resolver"
)

// Graph is the deduplicated dependency relation keyed by display name.
type Graph struct {
	Root  string
	nodes map[string]bool
	edges []resolver.Edge
}

// Build collects the nodes and edges of a resolution into a Graph.
// The root is always present even when it has no dependencies.
func Build(root string, edges []resolver.Edge) *Graph {
	g := &Graph{Root: root, nodes: map[string]bool{root: true}}
	seen := make(map[resolver.Edge]bool)
	for _, e := range edges {
		g.nodes[e.From] = true
		g.nodes[e.To] = true
		if !seen[e] {
			seen[e] = true
			g.edges = append(g.edges, e)
		}
	}
	return g
}

// Nodes returns all node names in sorted order.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Edges returns the deduplicated edges sorted by endpoints, so output
// is stable across runs.
func (g *Graph) Edges() []resolver.Edge {
	out := slices.Clone(g.edges)
	slices.SortFunc(out, func(a, b resolver.Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return out
}

// ToDOT converts the graph to Graphviz DOT. The root node is drawn
// with a double outline.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		if n == g.Root {
			fmt.Fprintf(&buf, "  %q [peripheries=2];\n", n)
			continue
		}
		fmt.Fprintf(&buf, "  %q;\n", n)
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the graph to SVG using Graphviz.
func (g *Graph) RenderSVG(ctx context.Context) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	parsed, err := graphviz.ParseBytes([]byte(g.ToDOT()))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer parsed.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render SVG")
	}
	return buf.Bytes(), nil
}
