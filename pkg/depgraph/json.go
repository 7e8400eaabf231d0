package depgraph

import (
	"encoding/json"
	"io"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

type jsonGraph struct {
	Root  string     `json:"root"`
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

type jsonNode struct {
	ID string `json:"id"`
}

type jsonEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteJSON encodes the graph as JSON and writes it to w. Nodes and
// edges come out in the same sorted order as ToDOT, so the output is
// stable for diffing.
func (g *Graph) WriteJSON(w io.Writer) error {
	out := jsonGraph{Root: g.Root}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, jsonNode{ID: n})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, jsonEdge{From: e.From, To: e.To})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode graph")
	}
	return nil
}
