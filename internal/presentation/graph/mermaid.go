package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Overlay carries run state to paint onto the graph.
type Overlay struct {
	Status map[string]domain.Status
	Cached map[string]bool
}

// OverlayFromResult builds an overlay from a finished run.
func OverlayFromResult(res *domain.RunResult) *Overlay {
	o := &Overlay{Status: map[string]domain.Status{}, Cached: map[string]bool{}}
	if res == nil {
		return o
	}
	for id, st := range res.NodeStates {
		o.Status[id] = st.Status
		if st.Cached {
			o.Cached[id] = true
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for g.
// When levels is given, nodes are grouped into one subgraph per level, in
// order; otherwise they are listed flat in declaration order. Each node shows
// its id and type; edges are labelled "fromPort:toPort". The overlay, if any,
// adds a class per node (success, error, running, pending, skipped, cached).
func GenerateMermaid(g *domain.Graph, levels [][]string, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	writeNode := func(indent, id string) {
		label := id
		if n, ok := g.Node(id); ok {
			label = fmt.Sprintf("%s<br/><i>%s</i>", id, n.Type)
		}
		fmt.Fprintf(&sb, "%s%s[\"%s\"]\n", indent, sanitizeMermaidID(id), escape(label))
	}

	if len(levels) > 0 {
		for i, group := range levels {
			fmt.Fprintf(&sb, "    subgraph level_%d[\"Level %d\"]\n", i, i)
			for _, id := range group {
				writeNode("        ", id)
			}
			sb.WriteString("    end\n")
		}
	} else {
		for _, id := range g.NodeIDs() {
			writeNode("    ", id)
		}
	}

	for _, e := range g.Edges() {
		fmt.Fprintf(&sb, "    %s -- \"%s:%s\" --> %s\n",
			sanitizeMermaidID(e.From.NodeID), escape(e.From.Port), escape(e.To.Port), sanitizeMermaidID(e.To.NodeID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps labels readable on both light and dark themes.
		sb.WriteString("    classDef success fill:#c8e6c9,stroke:#2e7d32,color:#000;\n")
		sb.WriteString("    classDef error fill:#ffcdd2,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef pending fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#f5f5f5,stroke:#bdbdbd,color:#666;\n")
		sb.WriteString("    classDef cached fill:#e1f5fe,stroke:#01579b,color:#000;\n")
		for _, id := range g.NodeIDs() {
			class := ""
			switch {
			case overlay.Cached[id]:
				class = "cached"
			case overlay.Status[id] != "":
				class = string(overlay.Status[id])
			default:
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), class)
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
