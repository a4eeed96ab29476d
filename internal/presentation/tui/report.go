package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// RunReport renders a run result as markdown: an outcome header, a table of
// node states in execution order, the outputs of the sink nodes and the run
// error if any.
func RunReport(g *domain.Graph, res *domain.RunResult) string {
	var b strings.Builder

	title := res.GraphID
	if g != nil && g.Name != "" {
		title = g.Name
	}
	outcome := "succeeded"
	if !res.Success {
		outcome = "failed"
	}
	fmt.Fprintf(&b, "# %s %s\n\n", title, outcome)
	fmt.Fprintf(&b, "- Execution: `%s`\n", res.ExecutionID)
	fmt.Fprintf(&b, "- Duration: %s\n\n", res.Duration)

	order := res.Order
	if len(order) == 0 && g != nil {
		order = g.NodeIDs()
	}
	if len(order) > 0 {
		b.WriteString("| Node | Type | Status | Attempts | Duration |\n|---|---|---|---|---|\n")
		for _, id := range order {
			st, ok := res.NodeStates[id]
			if !ok {
				continue
			}
			nodeType := ""
			if g != nil {
				if n, ok := g.Node(id); ok {
					nodeType = n.Type
				}
			}
			status := string(st.Status)
			if st.Cached {
				status += " (cached)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n", id, nodeType, status, st.Attempts, st.Duration())
		}
		b.WriteString("\n")
	}

	if sinks := sinkOutputs(g, res); len(sinks) > 0 {
		b.WriteString("## Outputs\n\n```json\n")
		data, err := json.MarshalIndent(sinks, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%q", err.Error()))
		}
		b.Write(data)
		b.WriteString("\n```\n\n")
	}

	if res.Error != nil {
		fmt.Fprintf(&b, "## Error\n\n`%s` %s\n", res.Error.Code, res.Error.Message)
		if res.Error.Err != nil {
			fmt.Fprintf(&b, "\n> %s\n", res.Error.Err)
		}
	}
	return b.String()
}

// sinkOutputs returns the outputs of successful nodes that feed no other
// node. Without a graph every successful output is returned.
func sinkOutputs(g *domain.Graph, res *domain.RunResult) map[string]map[string]any {
	feeds := map[string]bool{}
	if g != nil {
		for _, e := range g.Edges() {
			feeds[e.From.NodeID] = true
		}
	}
	out := map[string]map[string]any{}
	for id, st := range res.NodeStates {
		if st.Status == domain.StatusSuccess && !feeds[id] {
			out[id] = st.Output
		}
	}
	return out
}
