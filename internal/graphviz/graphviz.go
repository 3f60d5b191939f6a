// Package graphviz draws a snapshot of a reactive graph.
//
// Edges point the way changes flow, from a node to the nodes that read it.
// Values are ellipses, computed nodes boxes and clients filled boxes.
package graphviz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/vango-dev/spindle/pkg/reactive"
)

// Options configures DOT output.
type Options struct {
	// Labels maps node ids to names shown next to the id.
	Labels map[reactive.GraphID]string

	// LeftToRight lays the graph out horizontally.
	LeftToRight bool
}

// ToDOT converts a snapshot to Graphviz DOT.
func ToDOT(nodes []reactive.NodeInfo, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph spindle {\n")
	if opts.LeftToRight {
		buf.WriteString("  rankdir=LR;\n")
	} else {
		buf.WriteString("  rankdir=TB;\n")
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		label := fmt.Sprintf("%s %d", n.Kind, n.ID)
		if name, ok := opts.Labels[n.ID]; ok {
			label += "\n" + name
		}
		fmt.Fprintf(&buf, "  n%d [label=%q, %s];\n", n.ID, label, shape(n.Kind))
	}

	buf.WriteString("\n")
	for _, n := range nodes {
		for _, c := range n.Children {
			fmt.Fprintf(&buf, "  n%d -> n%d;\n", n.ID, c)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func shape(k reactive.NodeKind) string {
	switch k {
	case reactive.KindValue:
		return "shape=ellipse"
	case reactive.KindComputed:
		return "shape=box, style=rounded"
	case reactive.KindClient:
		return "shape=box, style=\"rounded,filled\", fillcolor=lightgrey"
	default:
		return "shape=plaintext"
	}
}

// RenderSVG renders DOT to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
