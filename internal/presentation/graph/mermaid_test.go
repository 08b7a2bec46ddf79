package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/benchrig/benchrig/internal/presentation/graph"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/registry"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []graph.Node
		contains []string
		excludes []string
	}{
		{
			name: "Critical Node Shape",
			nodes: []graph.Node{
				{Suite: "power", ID: "boot", Criticality: domain.SuiteCritical},
				{Suite: "rf", ID: "tx0"},
			},
			contains: []string{
				`power__boot{{"boot"}}`,
				`power__boot -- "on fail: abort" --> rf__tx0`,
			},
		},
		{
			name: "Not Implemented Shape",
			nodes: []graph.Node{
				{Suite: "rf", ID: "antenna-switch", Skip: true},
			},
			contains: []string{`rf__antenna_switch[/"antenna-switch"/]`},
		},
		{
			name: "Suites Become Subgraphs",
			nodes: []graph.Node{
				{Suite: "rf", ID: "2g.ch0"},
				{Suite: "rf", ID: "2g.ch1"},
				{Suite: "id", ID: "serial"},
			},
			contains: []string{
				`subgraph rf_0["rf"]`,
				`subgraph id_2["id"]`,
				`rf__2g_ch0 --> rf__2g_ch1`,
			},
			excludes: []string{"classDef"},
		},
		{
			name: "Outcome Classes",
			nodes: []graph.Node{
				{Suite: "rf", ID: "tx0", Status: domain.StatusPassed},
				{Suite: "rf", ID: "tx1", Status: domain.StatusFailed},
			},
			contains: []string{
				"classDef failed",
				"class rf__tx0 passed;",
				"class rf__tx1 failed;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, not := range tt.excludes {
				assert.NotContains(t, got, not)
			}
		})
	}
}

func TestNodesFromPlan(t *testing.T) {
	plan := &registry.Plan{Instances: []registry.Instance{
		{Suite: "power", ID: "boot", Criticality: domain.Critical},
		{Suite: "rf", ID: "later", Skip: true},
	}}
	assert.Equal(t, []graph.Node{
		{Suite: "power", ID: "boot", Criticality: domain.Critical},
		{Suite: "rf", ID: "later", Skip: true},
	}, graph.NodesFromPlan(plan))
}

func TestNodesFromReport(t *testing.T) {
	rep := &domain.Report{Cases: []domain.CaseResult{{Suite: "rf", ID: "tx0", Status: domain.StatusAborted}}}
	assert.Equal(t, []graph.Node{{Suite: "rf", ID: "tx0", Status: domain.StatusAborted}}, graph.NodesFromReport(rep))
}
