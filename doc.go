/*
Package benchrig is a framework for building hardware test stations: small
binaries that run ordered, parameterised test cases against a device, judge
measurements against declarative criteria and ask a human operator for
verdicts or barcode scans when a machine cannot decide.

# Concept

A station declares suites of test cases in a registry. Each case may iterate
over parameters (channels, bands, voltages) taken from code or from the run
configuration; expansion turns the declarations into a flat, ordered plan of
instances with unique "suite/id" identifiers. The runner executes the plan one
instance at a time and publishes every status change into a hierarchical
state tree, which operator UIs observe over HTTP, server-sent events, Redis
pub/sub or MCP.

# Key Features

  - Cascaded configuration: test type, machine, product (through a lookup table) and overlays.
  - Criteria: named predicates such as "value >= 10 and value < 20" evaluated per case, singly or in blocks.
  - Failure policy: non-critical failures continue, critical and suite-critical failures abort the remaining cases.
  - Operator feedback: pass/fail/retry verdicts and scans over a terminal, JSON lines, the state tree or a script.
  - Observability: lifecycle hooks, Prometheus metrics and structured logs through log/slog.

# Usage

	package main

	import (
		"github.com/benchrig/benchrig/pkg/bench"
		"github.com/benchrig/benchrig/pkg/cli"
		"github.com/benchrig/benchrig/pkg/registry"
	)

	func main() {
		reg := registry.New()
		reg.Suite("rf").
			Criteria(map[string]string{"gain": "value >= 12"}).
			Case("tx%d", func(c *bench.Context, p registry.Params) error {
				_, err := c.Evaluate("gain", measureGain(p.Int("tx")))
				return err
			}).
			Iterate("tx", registry.FromConfig("tx_channels"))
		cli.Main(reg)
	}

See examples/station-demo for a complete station.
*/
package benchrig
