package graph

import (
	"fmt"
	"strings"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/registry"
)

// Node is one test case as drawn on the execution graph.
type Node struct {
	Suite       string
	ID          string
	Criticality domain.Criticality
	Skip        bool
	// Status colours the node when set.
	Status domain.Status
}

// NodesFromPlan lists the instances of a plan in execution order.
func NodesFromPlan(plan *registry.Plan) []Node {
	out := make([]Node, len(plan.Instances))
	for i, inst := range plan.Instances {
		out[i] = Node{Suite: inst.Suite, ID: inst.ID, Criticality: inst.Criticality, Skip: inst.Skip}
	}
	return out
}

// NodesFromReport lists the cases of a stored report with their outcome.
func NodesFromReport(rep *domain.Report) []Node {
	out := make([]Node, len(rep.Cases))
	for i, c := range rep.Cases {
		out[i] = Node{Suite: c.Suite, ID: c.ID, Criticality: c.Criticality, Status: c.Status}
	}
	return out
}

// GenerateMermaid produces a Mermaid flowchart of the execution order with
// one subgraph per suite run. Shapes carry the failure policy:
//   - Critical or suite-critical: {{Hexagon}}, with the outgoing edge labelled "on fail: abort"
//   - Not implemented: [/Parallelogram/]
//   - Default: [Rectangle]
//
// Nodes with a Status get a matching class.
func GenerateMermaid(nodes []Node) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var styled bool
	for i, n := range nodes {
		if i == 0 || nodes[i-1].Suite != n.Suite {
			if i > 0 {
				sb.WriteString("    end\n")
			}
			fmt.Fprintf(&sb, "    subgraph %s_%d[\"%s\"]\n", sanitizeMermaidID(n.Suite), i, n.Suite)
		}
		opener, closer := "[", "]"
		switch {
		case n.Criticality.Escalates():
			opener, closer = "{{", "}}"
		case n.Skip:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", nodeID(n), opener, n.ID, closer)
		styled = styled || n.Status != ""
	}
	if len(nodes) > 0 {
		sb.WriteString("    end\n")
	}

	for i := 1; i < len(nodes); i++ {
		arrow := "-->"
		if nodes[i-1].Criticality.Escalates() {
			arrow = `-- "on fail: abort" -->`
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(nodes[i-1]), arrow, nodeID(nodes[i]))
	}

	if styled {
		sb.WriteString("\n    %% Outcome Styles\n")
		sb.WriteString("    classDef passed fill:#dcfce7,stroke:#15803d,color:#000;\n")
		sb.WriteString("    classDef failed fill:#fee2e2,stroke:#b91c1c,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#fef9c3,stroke:#a16207,color:#000;\n")
		sb.WriteString("    classDef aborted fill:#e5e7eb,stroke:#6b7280,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, n := range nodes {
			if n.Status != "" && n.Status != domain.StatusPending {
				fmt.Fprintf(&sb, "    class %s %s;\n", nodeID(n), n.Status)
			}
		}
	}
	return sb.String()
}

// nodeID is unique even when two suites share a case identifier.
func nodeID(n Node) string {
	return fmt.Sprintf("%s__%s", sanitizeMermaidID(n.Suite), sanitizeMermaidID(n.ID))
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
